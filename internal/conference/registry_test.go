package conference

import (
	"encoding/json"
	"testing"

	"github.com/n0remac/pttbridge/internal/signaling"
)

func newTestSession(id string) *Session {
	return &Session{
		id:        id,
		transport: newTransport(nil),
		closed:    make(chan struct{}),
	}
}

func drainOne(t *testing.T, s *Session) signaling.Envelope {
	t.Helper()
	select {
	case raw := <-s.transport.send:
		var env signaling.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	default:
		t.Fatalf("expected a queued envelope for session %s", s.id)
		return signaling.Envelope{}
	}
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := newRegistry()
	s := newTestSession("aaaaaaaa")
	r.add(s)

	if got := r.get("aaaaaaaa"); got != s {
		t.Fatalf("expected get to return the added session")
	}
	if r.count() != 1 {
		t.Fatalf("expected count 1, got %d", r.count())
	}

	r.remove("aaaaaaaa")
	if r.get("aaaaaaaa") != nil {
		t.Fatal("expected session to be gone after remove")
	}
}

func TestRegistry_SendTo(t *testing.T) {
	r := newRegistry()
	s := newTestSession("bbbbbbbb")
	r.add(s)

	r.sendTo("bbbbbbbb", signaling.Envelope{Type: signaling.TypePTTGranted})
	env := drainOne(t, s)
	if env.Type != signaling.TypePTTGranted {
		t.Fatalf("expected ptt_granted, got %s", env.Type)
	}
}

func TestRegistry_BroadcastExceptsSender(t *testing.T) {
	r := newRegistry()
	a := newTestSession("aaaaaaaa")
	b := newTestSession("bbbbbbbb")
	r.add(a)
	r.add(b)

	r.broadcast(signaling.Envelope{Type: signaling.TypeClientJoined, ClientID: "aaaaaaaa"}, "aaaaaaaa")

	select {
	case <-a.transport.send:
		t.Fatal("sender should not receive its own broadcast")
	default:
	}

	env := drainOne(t, b)
	if env.Type != signaling.TypeClientJoined {
		t.Fatalf("expected client_joined, got %s", env.Type)
	}
}

func TestRegistry_ClientList(t *testing.T) {
	r := newRegistry()
	a := newTestSession("aaaaaaaa")
	a.displayName = "Alice"
	r.add(a)

	list := r.clientList()
	if len(list) != 1 || list[0].ClientID != "aaaaaaaa" || list[0].DisplayName != "Alice" {
		t.Fatalf("unexpected client list: %+v", list)
	}
}
