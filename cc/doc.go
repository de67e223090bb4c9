// Package cc provides Cc[T], a reference-counted smart pointer that
// additionally detects and reclaims reference cycles. It is the public
// surface over internal/ccrt's untyped runtime: ccrt knows nothing about
// T, cc supplies the generic ccBox[T] that implements ccrt.Traceable by
// delegating to T's Tracer, Finalizer and Dropper implementations.
//
// Like ccrt, this package assumes a single mutator goroutine. Values of
// Cc[T] must never cross goroutines.
//
// There is no derive macro here (Go has none): implement Tracer by hand,
// calling cc.Visit(ctx, field) once per field that holds a Cc. Embed NoFinalize and
// NoDrop for payloads that don't need either hook.
package cc
