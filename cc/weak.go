package cc

import (
	"errors"
	"fmt"

	"github.com/frengor/rust-cc/internal/ccrt"
)

// ErrWeakOverflow is the error whose message Cc[T].Downgrade and
// Weak[T].Clone panic with when the weak reference count is already at its
// ceiling.
var ErrWeakOverflow = errors.New("cc: too many references have been created to a single Weak")

// Weak is a non-owning pointer to a collected allocation (spec.md §6's
// is_valid/weak-ptrs collaborator, supplemented from
// original_source/src/weak/mod.rs since spec.md's Non-goals never exclude
// it). A Weak does not keep the allocation's payload alive; once every
// strong handle (Cc[T]) is gone, Upgrade starts returning false.
//
// The zero Weak[T] is valid and behaves like one created by NewWeak: Upgrade
// always fails and WeakCount/StrongCount always report 0.
type Weak[T any] struct {
	header *ccrt.Header
}

// NewWeak returns a Weak that does not point to any allocation.
func NewWeak[T any]() Weak[T] {
	return Weak[T]{}
}

// Downgrade creates a new Weak pointer to c's allocation, incrementing the
// weak reference count. Panics if the weak count is already at its
// ceiling.
func (c Cc[T]) Downgrade() Weak[T] {
	if ccrt.IsTracing() {
		panic("cc: cannot downgrade a Cc while tracing")
	}
	if c.header == nil {
		return Weak[T]{}
	}
	if err := c.header.IncWeak(); err != nil {
		panic(fmt.Sprintf("cc: %v", ErrWeakOverflow))
	}
	return Weak[T]{header: c.header}
}

// Clone returns a new Weak pointer to the same allocation (or a no-op
// no-allocation Weak, if w is one), incrementing the weak count. Panics if
// the weak count is already at its ceiling.
func (w Weak[T]) Clone() Weak[T] {
	if w.header == nil {
		return w
	}
	if err := w.header.IncWeak(); err != nil {
		panic(fmt.Sprintf("cc: %v", ErrWeakOverflow))
	}
	return w
}

// Drop releases this weak handle, decrementing the weak count. After Drop,
// w must not be used again; like Cc[T].Drop, the returned zero value exists
// only to make `w = w.Drop()` call sites self-documenting.
func (w Weak[T]) Drop() Weak[T] {
	if w.header != nil {
		w.header.DecWeak()
	}
	return Weak[T]{}
}

// Upgrade tries to produce a strong handle to the pointed allocation,
// returning false if the allocation has already been dropped (spec.md §6's
// is_valid). On success the strong reference count is incremented exactly
// as Cc[T].Clone would.
func (w Weak[T]) Upgrade() (Cc[T], bool) {
	if ccrt.IsTracing() {
		panic("cc: cannot upgrade a Weak while tracing")
	}
	if w.header == nil || !w.header.IsAccessible() {
		return Cc[T]{}, false
	}
	if err := ccrt.Retain(w.header); err != nil {
		panic(fmt.Sprintf("cc: %v", ErrOverflow))
	}
	return Cc[T]{header: w.header}, true
}

// StrongCount returns the number of Cc[T] handles to the pointed
// allocation, or 0 if w does not point to any allocation or the allocation
// has already been dropped.
func (w Weak[T]) StrongCount() uint32 {
	if w.header == nil || !w.header.IsAccessible() {
		return 0
	}
	return w.header.Marker().RC()
}

// WeakCount returns the number of Weak[T] handles to the pointed
// allocation, or 0 if w does not point to any allocation.
func (w Weak[T]) WeakCount() uint32 {
	if w.header == nil {
		return 0
	}
	return w.header.WeakCount()
}

// WeakPtrEq reports whether a and b point to the same allocation (or both
// point to no allocation).
func WeakPtrEq[T any](a, b Weak[T]) bool {
	return a.header == b.header
}
