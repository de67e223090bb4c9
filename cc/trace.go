package cc

import "github.com/frengor/rust-cc/internal/ccrt"

// Tracer is the trace contract every payload stored in a Cc[T] must
// implement (spec.md §4.1): enumerate every outgoing strong reference the
// value owns by calling cc.Visit(ctx, field) once per Cc field. Two successive trace
// calls on an unchanged value must visit the same set in the same order,
// and trace must not mutate the object graph or create/drop any Cc.
//
// A manual implementation is usually one line per field:
//
//	func (n *Node) TraceRefs(ctx *cc.Context) {
//		cc.Visit(ctx, n.Next)
//		cc.Visit(ctx, n.Parent)
//	}
type Tracer interface {
	TraceRefs(ctx *Context)
}

// Finalizer is the optional finalize hook (spec.md §4.6). By default a
// value is finalized at most once; Cc[T].FinalizeAgain overrides that for
// a specific handle. Embed NoFinalize for payloads that don't need one.
type Finalizer interface {
	Finalize()
}

// Dropper is the payload destructor, run after finalization once the
// collector (or the fast path) has decided a value is unreachable. Embed
// NoDrop for payloads that own nothing needing explicit cleanup.
type Dropper interface {
	DropValue()
}

// NoFinalize is an embeddable zero-cost Finalizer implementation.
type NoFinalize struct{}

// Finalize implements Finalizer by doing nothing.
func (NoFinalize) Finalize() {}

// NoDrop is an embeddable zero-cost Dropper implementation.
type NoDrop struct{}

// DropValue implements Dropper by doing nothing.
func (NoDrop) DropValue() {}

// Context is the visitor a Tracer.TraceRefs implementation receives. It
// wraps ccrt.Visitor, translating between *Cc[T] (what user code holds)
// and *ccrt.Header (what the runtime operates on).
type Context struct {
	v *ccrt.Visitor
}

// Visit reports c as one of the current value's outgoing strong
// references. Visiting a nil or already-dropped Cc is a safe no-op.
func Visit[T any](ctx *Context, c Cc[T]) {
	if c.header == nil || c.header.Marker().IsDropped() {
		return
	}
	ctx.v.Visit(c.header)
}
