package cc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frengor/rust-cc/internal/ccrt"
)

// resetRuntime starts each test from a clean package-level state and
// disables auto-collect, so tests can call CollectCycles explicitly at the
// point they care about rather than racing the allocation trigger.
func resetRuntime(t *testing.T) {
	t.Helper()
	ccrt.ResetForTesting()
	ccrt.ResetDefaultTriggerForTesting()
	ccrt.DefaultTrigger().SetEnabled(false)
}

// Node is the package's own test payload: a single outgoing Cc edge, plus
// hooks to observe finalize/drop, used the same way fakeObj serves
// internal/ccrt's tests.
type Node struct {
	NoFinalize
	Next       Cc[Node]
	onFinalize func()
	onDrop     func()
}

func (n *Node) TraceRefs(ctx *Context) {
	Visit(ctx, n.Next)
}

func (n *Node) Finalize() {
	if n.onFinalize != nil {
		n.onFinalize()
	}
}

func (n *Node) DropValue() {
	if n.onDrop != nil {
		n.onDrop()
	}
}

func TestNewValueIsUniqueAndValid(t *testing.T) {
	resetRuntime(t)

	c := New(Node{})
	assert.True(t, c.IsValid())
	assert.True(t, c.IsUnique())
	assert.EqualValues(t, 1, c.StrongCount())
}

func TestCloneIncrementsStrongCount(t *testing.T) {
	resetRuntime(t)

	c := New(Node{})
	clone := c.Clone()
	defer clone.Drop()

	assert.EqualValues(t, 2, c.StrongCount())
	assert.False(t, c.IsUnique())
	assert.True(t, PtrEq(c, clone))
}

func TestDropReclaimsLeafImmediately(t *testing.T) {
	resetRuntime(t)

	dropped := false
	c := New(Node{onDrop: func() { dropped = true }})
	c.Drop()

	assert.True(t, dropped)
	assert.Equal(t, 0, BufferedCount())
}

func TestValuePanicsAfterDrop(t *testing.T) {
	resetRuntime(t)

	c := New(Node{})
	c = c.Drop()
	assert.False(t, c.IsValid())
	assert.Panics(t, func() { c.Value() })
}

// A mutual cycle held by no external handle is collected by CollectCycles;
// neither node drops until the cycle is genuinely unreachable.
func TestMutualCycleCollected(t *testing.T) {
	resetRuntime(t)

	var aDropped, bDropped bool
	a := New(Node{onDrop: func() { aDropped = true }})
	b := New(Node{onDrop: func() { bDropped = true }})

	a.Value().Next = b.Clone()
	b.Value().Next = a.Clone()

	a.Drop()
	b.Drop()

	assert.False(t, aDropped, "still referenced through the cycle before collection")
	assert.False(t, bDropped)

	CollectCycles()

	assert.True(t, aDropped)
	assert.True(t, bDropped)
	assert.Equal(t, 0, BufferedCount())
}

func TestMarkAliveUnbuffers(t *testing.T) {
	resetRuntime(t)

	a := New(Node{})
	b := New(Node{})
	a.Value().Next = b.Clone()
	b.Value().Next = a.Clone()

	a.Drop()
	require.Equal(t, 1, BufferedCount())

	a.MarkAlive()
	assert.Equal(t, 0, BufferedCount())
}

func TestFinalizeAgainClearsTheFinalizedFlag(t *testing.T) {
	resetRuntime(t)

	calls := 0
	c := New(Node{onFinalize: func() { calls++ }})
	c.Drop() // leaf, last handle: finalizes once then deallocates

	assert.Equal(t, 1, calls)
	assert.True(t, c.AlreadyFinalized())

	c.FinalizeAgain()
	assert.False(t, c.AlreadyFinalized())
}

func TestPtrEqDistinguishesAllocations(t *testing.T) {
	resetRuntime(t)

	a := New(Node{})
	b := New(Node{})
	defer a.Drop()
	defer b.Drop()

	assert.False(t, PtrEq(a, b))
	assert.True(t, PtrEq(a, a))
}

func TestCloneWhileTracingPanics(t *testing.T) {
	resetRuntime(t)

	c := New(Node{})
	defer c.Drop()

	ccrt.SetCollecting(true)
	defer ccrt.SetCollecting(false)

	assert.Panics(t, func() { c.Clone() })
}
