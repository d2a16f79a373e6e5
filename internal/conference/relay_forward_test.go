package conference

import (
	"testing"

	"github.com/n0remac/pttbridge/internal/signaling"
)

func TestForwardP2P_DeliversToTarget(t *testing.T) {
	c := &Conference{registry: newRegistry()}
	sender := newTestSession("aaaaaaaa")
	target := newTestSession("bbbbbbbb")
	c.registry.add(sender)
	c.registry.add(target)

	c.forwardP2P(sender, signaling.Envelope{
		Type: signaling.TypeP2POffer,
		To:   "bbbbbbbb",
		SDP:  "v=0...",
	})

	env := drainOne(t, target)
	if env.Type != signaling.TypeP2POffer || env.From != "aaaaaaaa" || env.SDP != "v=0..." {
		t.Fatalf("unexpected forwarded envelope: %+v", env)
	}
}

func TestForwardP2P_DropsUnknownTarget(t *testing.T) {
	c := &Conference{registry: newRegistry()}
	sender := newTestSession("aaaaaaaa")
	c.registry.add(sender)

	// Should not panic even though "ghost" isn't registered.
	c.forwardP2P(sender, signaling.Envelope{Type: signaling.TypeP2PAnswer, To: "ghost"})
}
