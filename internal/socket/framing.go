package socket

import (
	"encoding/binary"

	"github.com/lanikai/ice/iceerr"
)

// Framer implements RFC 4571 framing for ICE-TCP sockets (including
// TURN-over-TCP with the MS-TURN 4-byte header in some compatibility modes,
// see headerLen below), per spec §4.9.
//
// Framer holds only the "expecting_length" cursor and a scratch buffer; it
// has no socket of its own and is driven by whatever Kind wraps a TCP
// connection.
type Framer struct {
	headerLen int // 2 for plain RFC 4571, 4 for MS-TURN compatibility

	scratch         []byte
	expectingLength int
	haveLength      bool
}

// maxFrameSplit is the largest single frame emitted by Split, chosen so a
// split frame still fits within TURN Channel-Data overhead (spec §4.9).
const maxFrameSplit = 62 * 1024

// NewFramer creates a Framer with the given header length (2 or 4) and a
// scratch buffer sized to the ICE MTU floor from spec §4.9.
func NewFramer(headerLen int) *Framer {
	if headerLen != 2 && headerLen != 4 {
		headerLen = 2
	}
	const minScratch = 1300
	return &Framer{headerLen: headerLen, scratch: make([]byte, 0, minScratch)}
}

// Frame prepends the RFC 4571 length header to msg. If msg is larger than
// maxFrameSplit, it is split into multiple reliably-ordered frames that
// together reconstitute the same logical message on the wire; each returned
// slice is itself a fully framed chunk, i.e. the concatenation is the wire
// bytes to send in order.
func (f *Framer) Frame(msg []byte) [][]byte {
	var frames [][]byte
	for len(msg) > 0 {
		chunk := msg
		if len(chunk) > maxFrameSplit {
			chunk = chunk[:maxFrameSplit]
		}
		frames = append(frames, f.frameOne(chunk))
		msg = msg[len(chunk):]
	}
	if len(frames) == 0 {
		frames = append(frames, f.frameOne(nil))
	}
	return frames
}

func (f *Framer) frameOne(chunk []byte) []byte {
	out := make([]byte, f.headerLen+len(chunk))
	if f.headerLen == 4 {
		binary.BigEndian.PutUint16(out[0:2], 0) // MS-TURN control/data discriminator, data=0
		binary.BigEndian.PutUint16(out[2:4], uint16(len(chunk)))
	} else {
		binary.BigEndian.PutUint16(out[0:2], uint16(len(chunk)))
	}
	copy(out[f.headerLen:], chunk)
	return out
}

// Feed accumulates bytes read from the underlying stream socket. It returns
// every complete message assembled so far; any partial frame is retained
// internally for the next call.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	var out [][]byte
	f.scratch = append(f.scratch, data...)
	for {
		if !f.haveLength {
			if len(f.scratch) < f.headerLen {
				return out, nil
			}
			if f.headerLen == 4 {
				f.expectingLength = int(binary.BigEndian.Uint16(f.scratch[2:4]))
			} else {
				f.expectingLength = int(binary.BigEndian.Uint16(f.scratch[0:2]))
			}
			if f.expectingLength > maxFrameSplit {
				return out, iceerr.New("Framer.Feed", iceerr.StunProtocol)
			}
			f.scratch = f.scratch[f.headerLen:]
			f.haveLength = true
		}

		if len(f.scratch) < f.expectingLength {
			return out, nil
		}

		msg := make([]byte, f.expectingLength)
		copy(msg, f.scratch[:f.expectingLength])
		f.scratch = f.scratch[f.expectingLength:]
		f.haveLength = false
		out = append(out, msg)
	}
}
