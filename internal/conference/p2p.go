package conference

import (
	"io"
	"log"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// p2pCleanupGrace and gatherDeadline are the two timing constants spec.md
// §4.6 names: a 15s grace window before tearing down a disconnected P2P
// PC, and a short deadline for waiting on ICE gathering before sending
// the initial offer.
const (
	p2pCleanupGrace = 15 * time.Second
	gatherDeadline  = 2 * time.Second
)

// p2pPC is C6: the server-offered leg that fans the floor holder's audio
// out to this client and, opportunistically, receives the client's own
// uplink back (used for recording redundancy, spec.md §4.6).
type p2pPC struct {
	session *Session

	pc    *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticRTP
	queue candidateQueue

	cleanupTimer *time.Timer
	state        webrtc.PeerConnectionState
}

func newP2PPC(s *Session) *p2pPC {
	return &p2pPC{session: s}
}

// ensureCreated implements spec.md §4.6: "Created when the main PC first
// reaches connected." A second call (e.g. after a request_p2p_reconnect
// following teardown) recreates it.
func (p *p2pPC) ensureCreated() {
	if p.pc != nil {
		return
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "ptt-"+p.session.id,
	)
	if err != nil {
		log.Printf("[p2p %s] NewTrackLocalStaticRTP: %v", p.session.id, err)
		return
	}

	pc, err := p.session.conf.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{p.session.conf.iceServer},
	})
	if err != nil {
		log.Printf("[p2p %s] NewPeerConnection: %v", p.session.id, err)
		return
	}
	if _, err := pc.AddTrack(track); err != nil {
		log.Printf("[p2p %s] AddTrack: %v", p.session.id, err)
	}

	p.pc = pc
	p.track = track
	p.queue.reset()
	p.wireEvents()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		log.Printf("[p2p %s] CreateOffer: %v", p.session.id, err)
		return
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		log.Printf("[p2p %s] SetLocalDescription(offer): %v", p.session.id, err)
		return
	}
	select {
	case <-gathered:
	case <-time.After(gatherDeadline):
	}

	ld := pc.LocalDescription()
	sdp := signaling.MungeOpusMono(ld.SDP)
	p.session.send(signaling.Envelope{
		Type: signaling.TypeP2POffer,
		From: ServerClientID,
		SDP:  sdp,
	})
}

func (p *p2pPC) handleAnswer(sdp string) {
	if p.pc == nil {
		return
	}
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		log.Printf("[p2p %s] SetRemoteDescription(answer): %v", p.session.id, err)
		return
	}
	for _, c := range p.queue.drain() {
		if err := p.pc.AddICECandidate(toICEInit(c)); err != nil {
			log.Printf("[p2p %s] AddICECandidate (queued): %v", p.session.id, err)
		}
	}
}

func (p *p2pPC) handleCandidate(c signaling.ICECandidate) {
	if p.pc == nil {
		return
	}
	if !p.queue.remoteSet {
		p.queue.enqueue(c)
		return
	}
	if err := p.pc.AddICECandidate(toICEInit(c)); err != nil {
		log.Printf("[p2p %s] AddICECandidate: %v", p.session.id, err)
	}
}

// reconnect implements request_p2p_reconnect (spec.md §4.6): tear down
// any existing P2P PC and recreate it, clearing any stale cleanup timer.
func (p *p2pPC) reconnect() {
	if p.cleanupTimer != nil {
		p.cleanupTimer.Stop()
	}
	p.close()
	p.pc = nil
	p.ensureCreated()
}

func (p *p2pPC) wireEvents() {
	pc := p.pc
	s := p.session

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		s.send(signaling.Envelope{
			Type: signaling.TypeP2PICECandidate,
			From: ServerClientID,
			Candidate: &signaling.ICECandidate{
				Candidate:     init.Candidate,
				SDPMid:        init.SDPMid,
				SDPMLineIndex: init.SDPMLineIndex,
			},
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.state = state
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if p.cleanupTimer != nil {
				p.cleanupTimer.Stop()
			}
		case webrtc.PeerConnectionStateDisconnected:
			p.armCleanupTimer()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.close()
			p.pc = nil
		}
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go p.readUplink(remote)
	})
}

func (p *p2pPC) armCleanupTimer() {
	p.cleanupTimer = time.AfterFunc(p2pCleanupGrace, func() {
		log.Printf("[p2p %s] cleanup grace expired", p.session.id)
		p.close()
		p.pc = nil
	})
}

// readUplink forwards the client's own audio arriving on this PC to C9,
// gated by spec.md §4.6: "forwarded to §4.9 only if the floor holder is
// this clientId."
func (p *p2pPC) readUplink(remote *webrtc.TrackRemote) {
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if err != io.EOF {
				log.Printf("[p2p %s] ReadRTP: %v", p.session.id, err)
			}
			return
		}
		if !p.session.floorHolderIsSelf() {
			continue
		}
		p.session.conf.recorder.WritePacket(pkt.Payload)
	}
}

// sink exposes this session's outbound track to the mic-ingress fan-out
// (C8) when the underlying PC is connected.
func (p *p2pPC) sink() *trackSink {
	if p.pc == nil || p.track == nil || p.state != webrtc.PeerConnectionStateConnected {
		return nil
	}
	return &trackSink{id: p.session.id, track: p.track}
}

func (p *p2pPC) stateString() string {
	if p.pc == nil {
		return "closed"
	}
	return p.state.String()
}

func (p *p2pPC) cancelTimers() {
	if p.cleanupTimer != nil {
		p.cleanupTimer.Stop()
	}
}

func (p *p2pPC) close() {
	if p.pc == nil {
		return
	}
	p.pc.OnICECandidate(nil)
	p.pc.OnConnectionStateChange(nil)
	p.pc.OnTrack(nil)
	_ = p.pc.Close()
}
