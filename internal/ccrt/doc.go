// Package ccrt implements the core runtime of a cycle-collecting
// reference-counted allocator: the per-allocation counter/marker word, the
// intrusive lists threaded through allocation headers, and the two-phase
// collector that finds and reclaims unreachable reference cycles.
//
// Everything in this package assumes a single mutator: there is no locking
// and no atomics anywhere on the hot path. All package-level state lives in
// unsynchronized package variables, standing in for the thread-local state
// the original implementation keeps per OS thread (see doc comment on
// state.go). Calling any exported function from more than one goroutine is
// undefined behavior.
//
// Package cc, one level up, wraps this package behind a generic Cc[T]
// handle; ccrt itself is untyped and operates purely on *Header.
package ccrt
