package cc

import "github.com/frengor/rust-cc/internal/ccrt"

// CollectCycles runs the cycle collector to completion (spec.md §6's
// collect_cycles). A no-op if a collection is already in progress — in
// particular, calling it from inside a Tracer, Finalizer or Dropper
// callback returns immediately without altering any state (spec.md §4.6,
// property P6).
func CollectCycles() {
	ccrt.CollectCycles()
}

// BufferedCount returns how many allocations are currently sitting in
// POSSIBLE_CYCLES, awaiting the next collection.
func BufferedCount() int {
	return ccrt.PossibleCycles().Len()
}

// AllocatedBytes returns the number of bytes currently attributed to live
// Cc allocations, the same counter the auto-collect trigger watches.
func AllocatedBytes() uint64 {
	return ccrt.AllocatedBytes()
}

// ExecutionsCount returns how many times CollectCycles has run a collection
// to completion (not counting no-op re-entrant calls).
func ExecutionsCount() uint64 {
	return ccrt.ExecutionsCount()
}

// IsCollecting reports whether a collection (counting, root tracing,
// finalizing or dropping) is currently in progress.
func IsCollecting() bool {
	return ccrt.IsCollecting()
}

// IsTracing reports whether the calling code is running inside a collector
// trace pass. Tracer implementations can use this to assert they were not
// invoked directly by mistake, though in practice it mainly backs the
// panics Cc[T].Clone/Drop/New raise when called from inside Trace.
func IsTracing() bool {
	return ccrt.IsTracing()
}
