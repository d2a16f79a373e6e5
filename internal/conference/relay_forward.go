package conference

import (
	"log"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// forwardP2P implements C7: "Stateless per-message forwarder. For each
// P2P signaling envelope whose `to` does not denote the server,
// substitute `from = sender.clientId`, preserve the payload, and deliver
// to the target session. Unknown targets are dropped."
func (c *Conference) forwardP2P(sender *Session, env signaling.Envelope) {
	env.From = sender.id
	target := c.registry.get(env.To)
	if target == nil {
		log.Printf("[relay] unknown p2p target %q from %s, dropping %s", env.To, sender.id, env.Type)
		return
	}
	target.send(env)
}
