package conference

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// Session is one connected client (spec.md §3): a transport, a main PC
// (client -> server audio), and a P2P PC (server -> client fan-out),
// processed by a single reader goroutine so every mutation below happens
// on one logical thread of execution — the same "actor-per-session" shape
// spec.md §5 calls for, and the one the teacher's sfuPeer/readPumpSFU
// already follows for its room-based peers.
type Session struct {
	id          string
	displayName string // only ever touched from the read goroutine

	conf      *Conference
	transport *transport

	main *mainPC
	p2p  *p2pPC

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(conf *Conference, id string, conn *websocket.Conn) *Session {
	s := &Session{
		id:        id,
		conf:      conf,
		transport: newTransport(conn),
		closed:    make(chan struct{}),
	}
	s.main = newMainPC(s)
	s.p2p = newP2PPC(s)
	return s
}

// send marshals and enqueues env for delivery; best-effort per spec.md
// §4.3.
func (s *Session) send(env signaling.Envelope) {
	raw, err := env.Marshal()
	if err != nil {
		log.Printf("[session %s] marshal %s: %v", s.id, env.Type, err)
		return
	}
	s.transport.enqueue(raw)
}

// teardown implements spec.md §4.4's Registry teardown contract: release
// any held floor, cancel every timer, close both PCs after nulling their
// event handlers, remove from the registry, broadcast departure and a
// fresh floor status. Idempotent — may be invoked from either pump.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		close(s.closed)

		if released := s.conf.arbiter.ReleaseFloor(s.id); released {
			s.conf.onFloorReleased(s.id)
		}

		s.main.cancelTimers()
		s.p2p.cancelTimers()

		s.main.close()
		s.p2p.close()

		s.conf.registry.remove(s.id)
		s.conf.registry.broadcast(signaling.Envelope{
			Type:     signaling.TypeClientLeft,
			ClientID: s.id,
		}, s.id)
		s.conf.broadcastFloorStatus()

		s.transport.close()
	})
}

// floorHolderIsSelf reports whether this session currently holds the
// floor — used by the P2P PC to decide whether inbound RTP should reach
// C9 (spec.md §4.6: "forwarded to §4.9 only if the floor holder is this
// clientId").
func (s *Session) floorHolderIsSelf() bool {
	return s.conf.arbiter.Snapshot().Holder == s.id
}
