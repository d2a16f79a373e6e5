package audio

import (
	"math/rand"

	"github.com/pion/rtp"
)

// OpusPayloadType is fixed per spec.md §6 ("The Opus payload type used for
// outbound RTP is fixed at 111").
const OpusPayloadType = 111

// Stamper builds RTP packets for one outbound audio source (the server
// microphone, spec.md §4.8), advancing sequence and timestamp the way
// spec.md §6 requires: "sequence monotone mod 2^16, timestamp advancing by
// 960 per frame, SSRC per outbound source (random at start)".
type Stamper struct {
	ssrc uint32
	seq  uint16
	ts   uint32
}

// NewStamper creates a Stamper with a random starting SSRC/sequence, the
// way the teacher's client.go treats each outbound RTP source (random
// SSRC per pumpRTP stream) — here drawn explicitly rather than left to the
// peer-connection library, since the ingress path writes raw RTP itself.
func NewStamper() *Stamper {
	return &Stamper{
		ssrc: rand.Uint32(),
		seq:  uint16(rand.Intn(1 << 16)),
		ts:   rand.Uint32(),
	}
}

// Stamp wraps an Opus payload into the next RTP packet in this source's
// sequence, advancing the clock by one 20ms frame (960 samples).
func (s *Stamper) Stamp(payload []byte) *rtp.Packet {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         false,
			PayloadType:    OpusPayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	s.seq++
	s.ts += frameSamples
	return pkt
}
