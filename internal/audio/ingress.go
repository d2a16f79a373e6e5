package audio

import (
	"context"
	"log"
	"time"

	"github.com/pion/rtp"

	"github.com/n0remac/pttbridge/internal/floor"
)

// writeTimeout bounds every subprocess stdin write and every track write so
// a wedged pipe never backs up the RTP pipeline (spec.md §5).
const writeTimeout = 50 * time.Millisecond

// RTPSink is anything that can accept an outbound RTP packet for one P2P
// connection's audio track; internal/conference's per-session track wraps
// *webrtc.TrackLocalStaticRTP to satisfy this.
type RTPSink interface {
	ID() string
	WriteRTP(*rtp.Packet) error
}

// FloorSource reports the current floor holder so the ingress loop can
// apply spec.md §4.8's echo-suppression rule without importing the floor
// package's Arbiter directly (kept as a narrow read-only dependency).
type FloorSource func() string

// SinkLister returns the current set of P2P tracks whose connection state
// is connected; re-evaluated on every frame since membership changes as
// sessions come and go.
type SinkLister func() []RTPSink

// ModeAlways and ModePTT are the two SERVER_MIC_MODE values spec.md §6
// recognizes. ModeAlways forwards whenever no real client holds the floor
// (today's passive behavior); ModePTT treats the server mic itself as a
// floor contender that must claim ServerMicHolder before it is allowed to
// transmit, the same as a web client's ptt_request.
const (
	ModeAlways = "always"
	ModePTT    = "ptt"
)

// MicIngress implements C8: an optional microphone subprocess is read
// frame-by-frame and fanned out to every connected P2P track, honoring
// echo suppression. Grounded on the teacher's runFFmpegFileWithDetection
// subprocess-read loop in webrtc/client.go, generalized from video frames
// to Ogg/Opus packets.
type MicIngress struct {
	device  string
	mode    string
	holder  FloorSource
	sinks   SinkLister
	stamper *Stamper

	// claim and release implement ModePTT's floor contention; Run never
	// calls them in ModeAlways, where the mic never contends for the floor.
	claim   func() bool
	release func()
}

// NewMicIngress builds the ingress component. device names the capture
// source forwarded verbatim as the transcoder's input argument (spec.md §6
// MIC_DEVICE); holder and sinks are read on every frame. claim and release
// drive ModePTT's floor contention (spec.md §6 SERVER_MIC_MODE); they are
// not called in ModeAlways, so nil is accepted there.
func NewMicIngress(device, mode string, holder FloorSource, sinks SinkLister, claim func() bool, release func()) *MicIngress {
	return &MicIngress{device: device, mode: mode, holder: holder, sinks: sinks, stamper: NewStamper(), claim: claim, release: release}
}

// Run spawns the transcoder subprocess and forwards frames until ctx is
// cancelled or the subprocess exits. Callers restart it (spec.md §7,
// "Subprocess failure... restart on next floor grant" generalizes to mic
// ingress: a crash just ends this Run and the caller may call it again).
func (m *MicIngress) Run(ctx context.Context) error {
	if m.mode == ModePTT {
		if m.claim == nil || !m.claim() {
			return errFloorBusy
		}
		defer m.release()
	}

	proc, err := startPipe("ffmpeg",
		"-hide_banner", "-loglevel", "warning",
		"-f", "alsa", "-i", m.device,
		"-c:a", "libopus", "-ar", "48000", "-ac", "1",
		"-b:a", "24k", "-f", "ogg", "pipe:1",
	)
	if err != nil {
		return err
	}
	defer proc.kill()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		proc.kill()
		close(done)
	}()

	reader := NewPageReader(proc.stdout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := reader.NextPacket()
		if err != nil {
			return err
		}

		if m.mode == ModePTT {
			// ModePTT only ever forwards while this ingress itself holds
			// ServerMicHolder (claimed above); a forced release or a
			// sweeper timeout revokes that mid-Run.
			if m.holder() != floor.ServerMicHolder {
				continue
			}
		} else if isRealClient(m.holder()) {
			// spec.md §4.8: discard ingress frames while a real client holds
			// the floor, to avoid a mic -> speaker -> mic loop.
			continue
		}

		rtpPkt := m.stamper.Stamp(pkt)
		for _, sink := range m.sinks() {
			if err := writeRTPWithDeadline(sink, rtpPkt, writeTimeout); err != nil {
				log.Printf("[ingress] dropping frame for track %s: %v", sink.ID(), err)
			}
		}
	}
}

// isRealClient reports whether holder denotes an actual conferencing
// client rather than the server mic, the external VOX relay, or nobody.
func isRealClient(holder string) bool {
	return holder != floor.None && holder != floor.ServerMicHolder && holder != floor.ExternalHolder
}

func writeRTPWithDeadline(sink RTPSink, pkt *rtp.Packet, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- sink.WriteRTP(pkt) }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errWriteTimeout
	}
}
