package ccrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseOrBufferLeafGoesStraightToZero(t *testing.T) {
	ResetForTesting()

	dropped := false
	h := NewHeader(&fakeObj{dropFn: func() { dropped = true }}, 8)

	reclaimed := ReleaseOrBuffer(h)
	assert.True(t, reclaimed)
	assert.True(t, dropped)
	assert.EqualValues(t, 0, h.Marker().RC())
	assert.Equal(t, NonMarked, h.Marker().GetMark())
}

func TestReleaseOrBufferNonLastBuffersNonLeaf(t *testing.T) {
	ResetForTesting()

	child := newFakeHeader()
	parent := newFakeHeader(child)
	require.NoError(t, Retain(parent)) // RC=2

	reclaimed := ReleaseOrBuffer(parent)
	assert.False(t, reclaimed, "RC is still 1 after this decrement")
	assert.EqualValues(t, 1, parent.Marker().RC())
	assert.Equal(t, InPossibleCycles, parent.Marker().GetMark())
	assert.True(t, PossibleCycles().Contains(parent))
}

func TestRetainUnbuffers(t *testing.T) {
	ResetForTesting()

	child := newFakeHeader()
	parent := newFakeHeader(child)
	require.NoError(t, Retain(parent))
	ReleaseOrBuffer(parent) // buffers parent, RC back to 1
	require.Equal(t, InPossibleCycles, parent.Marker().GetMark())

	require.NoError(t, Retain(parent)) // RC=2 again
	assert.Equal(t, NonMarked, parent.Marker().GetMark())
	assert.False(t, PossibleCycles().Contains(parent))
}

func TestRetainOverflow(t *testing.T) {
	ResetForTesting()

	h := newFakeHeader()
	h.SetMarker(Marker(MaxRC) << rcShift)

	err := Retain(h)
	require.Error(t, err)
	var overflow *ErrOverflow
	require.ErrorAs(t, err, &overflow)
}

func TestReleaseOrBufferNeverDoubleBuffers(t *testing.T) {
	ResetForTesting()

	child := newFakeHeader()
	parent := newFakeHeader(child)
	require.NoError(t, Retain(parent)) // RC=2
	require.NoError(t, Retain(parent)) // RC=3

	ReleaseOrBuffer(parent) // RC=2, buffered
	ReleaseOrBuffer(parent) // RC=1, already buffered

	assert.EqualValues(t, 1, parent.Marker().RC())
	assert.Equal(t, 1, PossibleCycles().Len())
}

func TestReleaseOrBufferLastHandleResurrection(t *testing.T) {
	ResetForTesting()

	var h *Header
	h = NewHeader(&fakeObj{finalizeFn: func() {
		// The finalizer hands out a new strong reference to itself.
		require.NoError(t, Retain(h))
	}}, 8)

	reclaimed := ReleaseOrBuffer(h)
	assert.False(t, reclaimed, "a finalizer-created reference must prevent reclamation")
	assert.EqualValues(t, 1, h.Marker().RC())
	assert.True(t, h.Marker().IsFinalized())
	assert.False(t, h.Marker().IsDropped())
}
