package conference

import (
	"log"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// offerWaitTimeout and iceRestartTimeout are the two fixed deadlines
// spec.md §4.5 names for the main PC's happy path and its ICE-restart
// dance.
const (
	offerWaitTimeout  = 30 * time.Second
	iceRestartTimeout = 5 * time.Second
	iceCooldown       = 10 * time.Second
	maxICERestarts    = 5
)

// mainPC is C5: the client-to-server inbound audio leg. Its state
// machine ("new -> connecting -> connected <-> disconnected
// (iceRestartInProgress) -> connected | failed | closed") is driven by
// pion's OnConnectionStateChange, the same event the teacher wires in
// wirePeerEvents — generalized here to one PC per session rather than
// one per SFU room member.
type mainPC struct {
	session *Session

	pc    *webrtc.PeerConnection
	queue candidateQueue

	offerWaitTimer *time.Timer
	restartTimer   *time.Timer

	// restartMu guards the three fields below, written from both the
	// session's read goroutine (handleICERestartOffer) and pion's
	// OnConnectionStateChange callback goroutine (onConnected,
	// onDisconnected) — mirrors the teacher's restartMu in sfu.go.
	restartMu             sync.Mutex
	iceRestartInProgress  bool
	iceRestartAttempts    int
	iceRestartSuccessTime time.Time
}

func newMainPC(s *Session) *mainPC {
	return &mainPC{session: s}
}

func (m *mainPC) armOfferWaitTimeout() {
	m.offerWaitTimer = time.AfterFunc(offerWaitTimeout, func() {
		log.Printf("[mainpc %s] offer_timeout", m.session.id)
		go m.session.teardown()
	})
}

// handleOffer implements spec.md §4.5 step 2: create the PC on first
// offer, add a recvonly audio transceiver, apply the remote description,
// create+munge+apply a local answer, and reply.
func (m *mainPC) handleOffer(sdp string) {
	if m.offerWaitTimer != nil {
		m.offerWaitTimer.Stop()
	}

	if m.pc == nil {
		pc, err := m.session.conf.api.NewPeerConnection(webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{m.session.conf.iceServer},
		})
		if err != nil {
			log.Printf("[mainpc %s] NewPeerConnection: %v", m.session.id, err)
			go m.session.teardown()
			return
		}
		m.pc = pc
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			log.Printf("[mainpc %s] AddTransceiverFromKind: %v", m.session.id, err)
		}
		m.wireEvents()
	}

	if err := m.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}); err != nil {
		// spec.md §4.5: "setRemoteDescription error -> fatal for the session."
		log.Printf("[mainpc %s] SetRemoteDescription(offer): %v", m.session.id, err)
		go m.session.teardown()
		return
	}
	m.drainCandidates()

	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("[mainpc %s] CreateAnswer: %v", m.session.id, err)
		return
	}
	answer.SDP = signaling.MungeOpusMono(answer.SDP)
	if err := m.pc.SetLocalDescription(answer); err != nil {
		log.Printf("[mainpc %s] SetLocalDescription(answer): %v", m.session.id, err)
		return
	}
	m.session.send(signaling.Envelope{Type: signaling.TypeAnswer, SDP: answer.SDP})
}

// handleICERestartOffer implements spec.md §4.5's ICE-restart branch:
// apply the fresh offer, answer it, and re-arm the stall timer.
func (m *mainPC) handleICERestartOffer(sdp string) {
	if m.pc == nil {
		return
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
	}
	m.restartMu.Lock()
	m.iceRestartInProgress = true
	m.restartMu.Unlock()

	if err := m.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		log.Printf("[mainpc %s] SetRemoteDescription(ice_restart_offer): %v", m.session.id, err)
		go m.session.teardown()
		return
	}
	m.drainCandidates()

	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("[mainpc %s] CreateAnswer(ice_restart): %v", m.session.id, err)
		return
	}
	answer.SDP = signaling.MungeOpusMono(answer.SDP)
	if err := m.pc.SetLocalDescription(answer); err != nil {
		log.Printf("[mainpc %s] SetLocalDescription(ice_restart_answer): %v", m.session.id, err)
		return
	}
	m.session.send(signaling.Envelope{Type: signaling.TypeICERestartAnswer, SDP: answer.SDP})
	m.armRestartTimer()
}

func (m *mainPC) armRestartTimer() {
	m.restartTimer = time.AfterFunc(iceRestartTimeout, func() {
		log.Printf("[mainpc %s] ice restart stalled", m.session.id)
		if m.pc == nil || m.pc.ConnectionState() == webrtc.PeerConnectionStateConnected {
			return
		}
		// A stalled cycle counts as a failed attempt: prompt again, or
		// close the session once maxICERestarts is reached.
		m.restartMu.Lock()
		m.iceRestartInProgress = false
		m.restartMu.Unlock()
		m.onDisconnected()
	})
}

func (m *mainPC) handleCandidate(c signaling.ICECandidate) {
	if m.pc == nil {
		return
	}
	if !m.queue.remoteSet {
		m.queue.enqueue(c)
		return
	}
	if err := m.pc.AddICECandidate(toICEInit(c)); err != nil {
		// spec.md §4.5: "addIceCandidate error -> logged, not fatal."
		log.Printf("[mainpc %s] AddICECandidate: %v", m.session.id, err)
	}
}

func (m *mainPC) drainCandidates() {
	for _, c := range m.queue.drain() {
		if err := m.pc.AddICECandidate(toICEInit(c)); err != nil {
			log.Printf("[mainpc %s] AddICECandidate (queued): %v", m.session.id, err)
		}
	}
}

func (m *mainPC) wireEvents() {
	pc := m.pc
	s := m.session

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		s.send(signaling.Envelope{
			Type: signaling.TypeICECandidate,
			Candidate: &signaling.ICECandidate{
				Candidate:     init.Candidate,
				SDPMid:        init.SDPMid,
				SDPMLineIndex: init.SDPMLineIndex,
			},
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			m.onConnected()
		case webrtc.PeerConnectionStateDisconnected:
			m.onDisconnected()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			go s.teardown()
		}
	})
}

func (m *mainPC) onConnected() {
	m.restartMu.Lock()
	m.iceRestartInProgress = false
	m.iceRestartAttempts = 0
	m.iceRestartSuccessTime = time.Now()
	m.restartMu.Unlock()
	if m.restartTimer != nil {
		m.restartTimer.Stop()
	}

	conf := m.session.conf
	m.session.send(signaling.Envelope{
		Type:    signaling.TypeClientList,
		Clients: conf.registry.clientList(),
	})
	m.session.p2p.ensureCreated()
}

func (m *mainPC) onDisconnected() {
	m.restartMu.Lock()
	if m.iceRestartInProgress {
		m.restartMu.Unlock()
		return
	}
	if !m.iceRestartSuccessTime.IsZero() && time.Since(m.iceRestartSuccessTime) < iceCooldown {
		// spec.md §4.5: transient disconnects within the post-restart
		// cooldown don't start a new restart cycle.
		m.restartMu.Unlock()
		return
	}
	if m.iceRestartAttempts >= maxICERestarts {
		m.restartMu.Unlock()
		go m.session.teardown()
		return
	}
	m.iceRestartAttempts++
	m.restartMu.Unlock()

	m.session.send(signaling.Envelope{Type: signaling.TypeRequestICERestart})
	m.armRestartTimer()
}

func (m *mainPC) cancelTimers() {
	if m.offerWaitTimer != nil {
		m.offerWaitTimer.Stop()
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
	}
}

func (m *mainPC) close() {
	if m.pc == nil {
		return
	}
	m.pc.OnICECandidate(nil)
	m.pc.OnConnectionStateChange(nil)
	_ = m.pc.Close()
}

func toICEInit(c signaling.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}
