package conference

import (
	"log"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// dispatch implements spec.md §5's "within a session: envelopes are
// processed in receive order" by running entirely on the transport's
// single readPump goroutine — no locking needed for anything reached
// from here.
func dispatch(s *Session, raw []byte) {
	env, err := signaling.Parse(raw)
	if err != nil {
		// spec.md §4.3: "malformed frames are logged and dropped without
		// closing."
		log.Printf("[session %s] bad envelope: %v", s.id, err)
		return
	}

	switch env.Type {
	case signaling.TypeOffer:
		s.main.handleOffer(env.SDP)

	case signaling.TypeICECandidate:
		if env.Candidate != nil {
			s.main.handleCandidate(*env.Candidate)
		}

	case signaling.TypeICERestartOffer:
		s.main.handleICERestartOffer(env.SDP)

	case signaling.TypeP2POffer, signaling.TypeP2PAnswer, signaling.TypeP2PICECandidate:
		handleP2PEnvelope(s, env)

	case signaling.TypePTTRequest:
		handlePTTRequest(s)

	case signaling.TypePTTRelease:
		handlePTTRelease(s)

	case signaling.TypeSetDisplayName:
		// spec.md §4.3: visible to subsequent broadcasts, not this one.
		s.displayName = env.DisplayName
		// spec.md §3: the persistent client-name table is updated on every
		// rename, not only on floor grant.
		s.conf.names.Set(s.id, s.displayName)

	case signaling.TypePushSubscribe:
		if s.conf.subscriptions != nil {
			if err := s.conf.subscriptions.Save(s.id, env.Subscription); err != nil {
				log.Printf("[session %s] saving push subscription: %v", s.id, err)
			}
		}

	case signaling.TypeRequestP2PReconnect:
		if s.main.restartTimer != nil {
			s.main.restartTimer.Stop()
			s.main.restartTimer = nil
		}
		s.p2p.reconnect()

	default:
		log.Printf("[session %s] unknown envelope type %q", s.id, env.Type)
	}
}

// handleP2PEnvelope routes a p2p_* envelope either to this session's own
// server-side P2P PC (when addressed to the server) or through the
// stateless relay (C7) to another client.
func handleP2PEnvelope(s *Session, env signaling.Envelope) {
	if env.To != "" && env.To != ServerClientID {
		s.conf.forwardP2P(s, env)
		return
	}

	switch env.Type {
	case signaling.TypeP2PAnswer:
		s.p2p.handleAnswer(env.SDP)
	case signaling.TypeP2PICECandidate:
		if env.Candidate != nil {
			s.p2p.handleCandidate(*env.Candidate)
		}
	case signaling.TypeP2POffer:
		// The server is always the P2P offerer (spec.md §4.6); an
		// inbound offer addressed to the server has no defined handling
		// and is logged rather than acted on.
		log.Printf("[session %s] unexpected p2p_offer addressed to server", s.id)
	}
}

// handlePTTRequest implements the requester-facing half of spec.md §4.1:
// acquire the floor and reply ptt_granted/ptt_denied *before* fanning out
// the grant side effects (C2 relay, C9 recording, C4 broadcast). spec.md
// §8/§9 require the requester to see its own ptt_granted before the
// ptt_status broadcast that onFloorGranted triggers — reversing that
// order is the one causality mistake the spec calls out by name.
func handlePTTRequest(s *Session) {
	granted, holder, _ := s.conf.arbiter.RequestFloor(s.id)
	if !granted {
		s.send(signaling.Envelope{
			Type:        signaling.TypePTTDenied,
			Speaker:     holder,
			SpeakerName: s.conf.displayNameOf(holder),
		})
		return
	}
	s.send(signaling.Envelope{Type: signaling.TypePTTGranted})
	s.conf.onFloorGranted(s.id)
}

func handlePTTRelease(s *Session) {
	if s.conf.arbiter.ReleaseFloor(s.id) {
		s.conf.onFloorReleased(s.id)
	}
}
