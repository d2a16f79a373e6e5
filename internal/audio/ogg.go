// Package audio implements the Ogg/Opus framing, RTP stamping, and
// subprocess plumbing for the microphone ingress (spec.md §4.8) and
// speaker/recorder egress (spec.md §4.9) pipelines. The RTP and page
// construction style follows the teacher's direct, no-framework approach
// in webrtc/sfu.go (hand-built rtp.Packet values, raw byte manipulation)
// rather than reaching for a higher-level muxer, because no ecosystem
// library in the retrieved pack writes an Ogg/Opus container — only
// codec bindings (layeh.com/gopus, gopkg.in/hraban/opus.v2) that decode
// payloads, not frame them.
package audio

import (
	"encoding/binary"
)

// oggCRCTable is the standard (non-reflected) Ogg CRC-32 table,
// polynomial 0x04C11DB7, as required by spec.md §9.
var oggCRCTable [256]uint32

func init() {
	const poly = uint32(0x04C11DB7)
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		oggCRCTable[i] = crc
	}
}

// oggCRC32 computes the Ogg page checksum over data (with the page's CRC
// field already zeroed), per the non-reflected table above.
func oggCRC32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

const (
	oggSampleRate = 48000
	frameSamples  = 960 // 20ms @ 48kHz, spec.md §4.8/§4.9
)

// opusHeadPacket and opusTagsPacket build the fixed identification/comment
// packets every Ogg/Opus stream must begin with (spec.md §6, subprocess
// contract: "the core must emit OpusHead then OpusTags pages before any
// data page").
func opusHeadPacket() []byte {
	b := make([]byte, 19)
	copy(b[0:8], []byte("OpusHead"))
	b[8] = 1    // version
	b[9] = 1    // channel count (mono)
	binary.LittleEndian.PutUint16(b[10:12], 0) // pre-skip
	binary.LittleEndian.PutUint32(b[12:16], oggSampleRate)
	binary.LittleEndian.PutUint16(b[16:18], 0) // output gain
	b[18] = 0                                  // channel mapping family
	return b
}

func opusTagsPacket() []byte {
	vendor := []byte("pttbridge")
	b := make([]byte, 0, 8+4+len(vendor)+4)
	b = append(b, []byte("OpusTags")...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(vendor)))
	b = append(b, lenBuf[:]...)
	b = append(b, vendor...)
	binary.LittleEndian.PutUint32(lenBuf[:], 0) // zero user comments
	b = append(b, lenBuf[:]...)
	return b
}

// Encoder builds an Ogg/Opus byte stream one page at a time: a BOS page
// carrying OpusHead, a second page carrying OpusTags, then one data page
// per Opus packet with a monotonically advancing granule position
// (spec.md §4.9 steps 1-2).
type Encoder struct {
	serial        uint32
	pageSeq       uint32
	granule       uint64
	headerWritten bool
}

// NewEncoder creates an encoder for one logical Ogg stream. serial should
// be stable for the stream's lifetime (a playback pipe in "persistent"
// mode keeps the same Encoder — and so the same serial and a monotonic
// granule counter — across silences, per spec.md §4.9).
func NewEncoder(serial uint32) *Encoder {
	return &Encoder{serial: serial}
}

// HeaderPages returns the OpusHead (BOS, seq 0) and OpusTags (seq 1, no
// data) pages. Call once per stream before any DataPage.
func (e *Encoder) HeaderPages() [][]byte {
	head := e.buildPage(opusHeadPacket(), 0, true, false, 0)
	tags := e.buildPage(opusTagsPacket(), 0, false, false, 1)
	e.headerWritten = true
	e.pageSeq = 2
	return [][]byte{head, tags}
}

// HeaderWritten reports whether HeaderPages has already been called.
func (e *Encoder) HeaderWritten() bool { return e.headerWritten }

// DataPage wraps one Opus packet (20ms of audio) into a single Ogg page,
// advancing the granule position by 960 samples (spec.md §4.9 step 2).
func (e *Encoder) DataPage(opusPacket []byte) []byte {
	e.granule += frameSamples
	page := e.buildPage(opusPacket, e.granule, false, false, e.pageSeq)
	e.pageSeq++
	return page
}

// buildPage assembles a full Ogg page: the 27-byte header, the segment
// table, and the packet payload, then stamps the CRC-32 computed over the
// whole page with the CRC field zeroed (spec.md §9).
func (e *Encoder) buildPage(packet []byte, granule uint64, bos, eos bool, seq uint32) []byte {
	segments, lastLen := segmentTable(len(packet))

	headerLen := 27 + len(segments)
	page := make([]byte, headerLen+len(packet))

	copy(page[0:4], []byte("OggS"))
	page[4] = 0 // stream structure version
	var flags byte
	if bos {
		flags |= 0x02
	}
	if eos {
		flags |= 0x04
	}
	page[5] = flags
	binary.LittleEndian.PutUint64(page[6:14], granule)
	binary.LittleEndian.PutUint32(page[14:18], e.serial)
	binary.LittleEndian.PutUint32(page[18:22], seq)
	binary.LittleEndian.PutUint32(page[22:26], 0) // CRC, zeroed for checksum calc
	page[26] = byte(len(segments))
	copy(page[27:27+len(segments)], segments)
	copy(page[27+len(segments):], packet)
	_ = lastLen

	crc := oggCRC32(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}

// segmentTable builds the lacing-value segment table for a payload of the
// given length: full 255-byte entries followed by the remainder. The
// remainder entry is always present, so an empty payload or one whose
// length is a multiple of 255 ends with a zero-length segment.
func segmentTable(n int) (segments []byte, lastLen int) {
	for n >= 255 {
		segments = append(segments, 255)
		n -= 255
	}
	segments = append(segments, byte(n))
	return segments, n
}
