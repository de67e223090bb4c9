package cc

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/frengor/rust-cc/internal/ccrt"
)

// ErrOverflow is the error whose message Clone and Weak[T].Upgrade panic
// with when the strong reference count is already at its ceiling
// (spec.md §4.2, §7).
var ErrOverflow = errors.New("cc: too many references have been created to a single Cc")

// ErrAlreadyDropped is the error whose message Value panics with when the
// Cc is zero or its payload has already been dropped (spec.md invariant I4).
var ErrAlreadyDropped = errors.New("cc: value has already been dropped")

// ccBox is the generic allocation header + payload pair; spec.md §3's
// CcBox. It embeds ccrt.Header so that every Header method is promoted,
// and implements ccrt.Traceable by delegating to value's Tracer,
// Finalizer and Dropper implementations, if any.
type ccBox[T any] struct {
	ccrt.Header
	value T
}

func (b *ccBox[T]) TraceRefs(v *ccrt.Visitor) {
	if t, ok := any(&b.value).(Tracer); ok {
		t.TraceRefs(&Context{v: v})
	}
}

func (b *ccBox[T]) RunFinalizer() {
	if f, ok := any(&b.value).(Finalizer); ok {
		f.Finalize()
	}
}

func (b *ccBox[T]) DropPayload() {
	if d, ok := any(&b.value).(Dropper); ok {
		d.DropValue()
	}
}

// Cc is a reference-counted handle to a cycle-collected allocation.
// Cloning bumps the strong count; Drop decrements it. A zero Cc is valid
// and behaves like one that has already been dropped (IsValid reports
// false, Value panics).
type Cc[T any] struct {
	header *ccrt.Header
}

// New heap-allocates t, returning a handle with a strong count of 1
// (spec.md §6's allocate). If auto-collect is enabled (the default, see
// config.go), New may trigger a collection before returning.
//
// Panics if called while the collector is actively tracing (allocating from
// inside TraceRefs is forbidden — spec.md §4.1's stability-under-collection
// obligation). Finalize and DropValue run outside tracing and may call New.
func New[T any](t T) Cc[T] {
	if ccrt.IsTracing() {
		panic("cc: cannot create a new Cc while tracing")
	}

	box := &ccBox[T]{value: t}
	box.Header = *ccrt.NewHeader(box, uint64(unsafe.Sizeof(*box)))
	box.Header.SetAllocSite(ccrt.CaptureAllocSite())
	ccrt.RecordAllocation(box.Header.Size())

	if trigger := ccrt.DefaultTrigger(); trigger.Enabled() && trigger.ShouldCollect() {
		ccrt.CollectCycles()
		trigger.AdjustThreshold()
	}

	return Cc[T]{header: &box.Header}
}

func (c Cc[T]) box() *ccBox[T] {
	obj, ok := c.header.Obj().(*ccBox[T])
	if !ok {
		panic("cc: corrupted header: Obj is not the expected ccBox[T]")
	}
	return obj
}

// Value returns a pointer to the managed value. Panics if the Cc is zero
// or the value has already been dropped; callers that want the
// non-panicking form should check IsValid first.
func (c Cc[T]) Value() *T {
	if !c.IsValid() {
		panic(fmt.Sprintf("cc: %v", ErrAlreadyDropped))
	}
	return &c.box().value
}

// IsValid reports whether the Cc is non-zero and its payload has not been
// dropped (spec.md §6's is_valid).
func (c Cc[T]) IsValid() bool {
	return c.header != nil && c.header.IsAccessible()
}

// Clone returns a new handle to the same allocation, incrementing the
// strong count. Panics with ErrOverflow's message if the count is
// already at its ceiling, and panics if called while tracing.
func (c Cc[T]) Clone() Cc[T] {
	if ccrt.IsTracing() {
		panic("cc: cannot clone a Cc while tracing")
	}
	if c.header == nil {
		return c
	}
	if err := ccrt.Retain(c.header); err != nil {
		panic(fmt.Sprintf("cc: %v", ErrOverflow))
	}
	return Cc[T]{header: c.header}
}

// Drop releases this handle (spec.md §4.4). After Drop, c must not be
// used again; Go does not enforce move semantics, so the zero value
// returned here exists only as a convenience for `c = c.Drop()`-style
// call sites that want to make reuse a visible bug.
func (c Cc[T]) Drop() Cc[T] {
	if ccrt.IsTracing() {
		panic("cc: cannot drop a Cc while tracing")
	}
	if c.header != nil {
		ccrt.ReleaseOrBuffer(c.header)
	}
	return Cc[T]{}
}

// StrongCount returns the current strong reference count.
func (c Cc[T]) StrongCount() uint32 {
	if c.header == nil {
		return 0
	}
	return c.header.Marker().RC()
}

// IsUnique reports whether this is the only strong handle to the
// allocation.
func (c Cc[T]) IsUnique() bool {
	return c.StrongCount() == 1
}

// PtrEq reports whether a and b point to the same allocation.
func PtrEq[T any](a, b Cc[T]) bool {
	return a.header == b.header
}

// MarkAlive removes the allocation from POSSIBLE_CYCLES if it is
// currently buffered there. A no-op otherwise (spec.md §6, §4.7).
func (c Cc[T]) MarkAlive() {
	if c.header != nil {
		ccrt.Unbuffer(c.header)
	}
}

// FinalizeAgain clears the finalized-once flag, making the allocation
// eligible to be finalized again on a future collection or drop. Panics
// if called while a collection is in progress.
func (c Cc[T]) FinalizeAgain() {
	if ccrt.IsCollecting() {
		panic("cc: FinalizeAgain cannot be called while collecting")
	}
	if c.header == nil {
		return
	}
	c.header.SetMarker(c.header.Marker().WithFinalizedCleared())
}

// AlreadyFinalized reports whether the allocation has already been
// finalized.
func (c Cc[T]) AlreadyFinalized() bool {
	return c.header != nil && c.header.Marker().IsFinalized()
}
