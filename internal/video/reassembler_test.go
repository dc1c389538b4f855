package video

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragment(data []byte, ident uint32) []byte {
	f := append([]byte(nil), data...)
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], ident)
	return append(f, tail[:]...)
}

func repeat(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

// Scenario-Frag-1 from spec.md §8.
func TestScenarioFrag1(t *testing.T) {
	r := NewReassembler()

	first := repeat(0xAA, 500)
	second := repeat(0xBB, 500)

	r.AddData(fragment(first, 1))
	r.AddData(fragment(second, 2))
	r.AddData(FrameEnd)

	unit, ok := r.TakeUnit()
	require.True(t, ok)
	assert.Equal(t, append(append([]byte(nil), first...), second...), unit)
}

// Scenario-Frag-2 from spec.md §8: a gap (ident jumps from 1 to 3) fails
// the unit.
func TestScenarioFrag2(t *testing.T) {
	r := NewReassembler()

	r.AddData(fragment(repeat(0xAA, 500), 1))
	r.AddData(fragment(repeat(0xCC, 500), 3))
	r.AddData(FrameEnd)

	_, ok := r.TakeUnit()
	assert.False(t, ok)
}

func TestTakeUnitBeforeFrameEnd(t *testing.T) {
	r := NewReassembler()
	r.AddData(fragment([]byte("partial"), 1))

	_, ok := r.TakeUnit()
	assert.False(t, ok, "no unit is ready until the terminator arrives")
}

func TestDuplicateIdentResetsUnit(t *testing.T) {
	r := NewReassembler()

	r.AddData(fragment([]byte("first"), 1))
	// ident <= last_ident starts a fresh unit.
	r.AddData(fragment([]byte("second"), 1))
	r.AddData(FrameEnd)

	unit, ok := r.TakeUnit()
	require.True(t, ok)
	assert.Equal(t, []byte("second"), unit)
}

func TestFinishedThenNewFragmentStartsFreshUnit(t *testing.T) {
	r := NewReassembler()
	r.AddData(fragment([]byte("first"), 1))
	r.AddData(FrameEnd)

	unit, ok := r.TakeUnit()
	require.True(t, ok)
	assert.Equal(t, []byte("first"), unit)

	// A subsequent fragment after FrameEnd implicitly resets the builder
	// for a new NAL unit, even though ident restarts at 1.
	r.AddData(fragment([]byte("second"), 1))
	_, ok = r.TakeUnit()
	assert.False(t, ok, "accumulating again, not yet finished")

	r.AddData(FrameEnd)
	unit, ok = r.TakeUnit()
	require.True(t, ok)
	assert.Equal(t, []byte("second"), unit)
}

func TestShortFragmentDiscardedSilently(t *testing.T) {
	r := NewReassembler()
	r.AddData([]byte{0x01, 0x02})
	_, ok := r.TakeUnit()
	assert.False(t, ok)
}
