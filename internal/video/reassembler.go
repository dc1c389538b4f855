//////////////////////////////////////////////////////////////////////////////
//
// Reassembler rebuilds one H.264 NAL unit at a time out of the bounded UDP
// fragments produced by an outgoing stream worker. Grounded on
// original_source's h264_stream.rs incoming::NalBuilder: a fixed-size
// buffer, a monotonically increasing fragment identifier, and a
// fail-on-gap policy rather than reordering or retransmission.
//
// See spec.md §4.2.
//
//////////////////////////////////////////////////////////////////////////////

package video

import "bytes"

// MaxNALUnitSize bounds how large a single reassembled NAL unit can be.
const MaxNALUnitSize = 65535

// FrameEnd is the sentinel fragment marking the end of a NAL unit's
// fragment sequence. It is sent as a whole UDP datagram distinct from any
// data fragment.
var FrameEnd = []byte("11111111111")

// Reassembler accumulates data fragments for a single H.264 NAL unit.
// It is not safe for concurrent use.
type Reassembler struct {
	finished bool
	failed   bool

	buf         [MaxNALUnitSize]byte
	lastIdent   uint32
	writeCursor int
}

// NewReassembler returns a Reassembler ready to receive fragments.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

func (r *Reassembler) reset() {
	r.finished = false
	r.failed = false
	r.lastIdent = 0
	r.writeCursor = 0
}

// AddData feeds one UDP datagram's payload into the reassembler. Fragments
// are (data ‖ identifier LE-u32); the identifier counts up from 1 within a
// unit. A gap (an identifier more than one past the last) marks the unit
// failed and later fragments for it are dropped. An identifier at or below
// the last one, or any data fragment arriving after the FrameEnd datagram,
// resets the builder and starts a new unit.
func (r *Reassembler) AddData(fragment []byte) {
	if len(fragment) == len(FrameEnd) && bytes.Equal(fragment, FrameEnd) {
		r.finished = true
		return
	}

	data, ident, ok := decodeFragment(fragment)
	if !ok {
		return
	}

	if r.finished || ident <= r.lastIdent {
		r.reset()
	}
	if r.failed {
		return
	}

	missing := int64(ident) - 1 - int64(r.lastIdent)
	if missing > 0 {
		r.failed = true
		return
	}

	r.lastIdent = ident

	if r.writeCursor+len(data) > len(r.buf) {
		r.failed = true
		return
	}
	copy(r.buf[r.writeCursor:], data)
	r.writeCursor += len(data)
}

// decodeFragment splits a fragment into its data and trailing LE u32
// identifier.
func decodeFragment(fragment []byte) (data []byte, ident uint32, ok bool) {
	if len(fragment) <= 4 {
		return nil, 0, false
	}
	tail := fragment[len(fragment)-4:]
	ident = uint32(tail[0]) | uint32(tail[1])<<8 | uint32(tail[2])<<16 | uint32(tail[3])<<24
	return fragment[:len(fragment)-4], ident, true
}

// TakeUnit returns a copy of the completed NAL unit, or false if none is
// ready: either still accumulating, or failed due to a missing fragment.
// It does not clear state; the next AddData call that starts a new unit
// implicitly resets the builder (spec.md §4.2).
func (r *Reassembler) TakeUnit() ([]byte, bool) {
	if !r.finished || r.failed {
		return nil, false
	}
	return append([]byte(nil), r.buf[:r.writeCursor]...), true
}
