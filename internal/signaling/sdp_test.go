package signaling

import (
	"strings"
	"testing"
)

const sampleSDP = `v=0
o=- 123 2 IN IP4 127.0.0.1
s=-
t=0 0
m=audio 9 UDP/TLS/RTP/SAVPF 111
c=IN IP4 0.0.0.0
a=rtpmap:111 opus/48000/2
a=fmtp:111 minptime=10;useinbandfec=1
a=rtcp-mux
`

func TestMungeOpusMono_AddsStereoZero(t *testing.T) {
	out := MungeOpusMono(sampleSDP)
	if !strings.Contains(out, "stereo=0") || !strings.Contains(out, "sprop-stereo=0") {
		t.Fatalf("expected stereo=0;sprop-stereo=0 in munged SDP, got:\n%s", out)
	}
	if !strings.Contains(out, "useinbandfec=1") {
		t.Fatalf("expected original fmtp params preserved, got:\n%s", out)
	}
	// Everything else must pass through verbatim.
	if !strings.Contains(out, "o=- 123 2 IN IP4 127.0.0.1") {
		t.Fatalf("expected unrelated SDP lines untouched")
	}
}

func TestMungeOpusMono_Idempotent(t *testing.T) {
	once := MungeOpusMono(sampleSDP)
	twice := MungeOpusMono(once)
	if once != twice {
		t.Fatalf("expected idempotent munge, got:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestMungeOpusMono_NoOpusLine(t *testing.T) {
	const noOpus = "v=0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\n"
	if out := MungeOpusMono(noOpus); out != noOpus {
		t.Fatalf("expected passthrough when no Opus rtpmap present")
	}
}
