package ccrt

// state holds every piece of runtime-wide bookkeeping the collector needs
// between calls: which allocations are buffered as cycle candidates, which
// phase (if any) is currently running, and the counters package cc exposes
// through collect.go. It stands in for the original implementation's
// thread-local State: since ccrt assumes a single mutator (see doc.go),
// one package-level value does the same job a thread-local would.
var state = newState()

type runtimeState struct {
	possibleCycles *List

	collecting bool
	finalizing bool
	dropping   bool

	allocatedBytes  uint64
	executionsCount uint64
}

func newState() *runtimeState {
	return &runtimeState{possibleCycles: NewList()}
}

// PossibleCycles returns the global POSSIBLE_CYCLES buffer (spec.md §4.2).
func PossibleCycles() *List { return state.possibleCycles }

// IsCollecting reports whether a collection is currently in progress (any
// phase, including finalization and dropping).
func IsCollecting() bool { return state.collecting }

// SetCollecting sets the flag IsCollecting reports; CollectCycles holds it
// for the whole collection.
func SetCollecting(v bool) { state.collecting = v }

// IsFinalizing reports whether the collector is currently running
// finalizers.
func IsFinalizing() bool { return state.finalizing }

// SetFinalizing records that the finalization step has started or
// finished.
func SetFinalizing(v bool) { state.finalizing = v }

// IsDropping reports whether the collector is currently dropping payloads.
func IsDropping() bool { return state.dropping }

// SetDropping records that the drop step has started or finished.
func SetDropping(v bool) { state.dropping = v }

// IsTracing reports whether a Trace call happening right now is being
// driven by the collector (as opposed to, say, a user calling it directly
// for debugging) — true exactly when a collection is in progress and
// neither finalizing nor dropping has started yet. Package cc checks it
// to refuse creating, cloning or dropping a Cc from inside Trace.
func IsTracing() bool {
	return state.collecting && !state.finalizing && !state.dropping
}

// AllocatedBytes returns the running total recorded by RecordAllocation
// minus RecordDeallocation.
func AllocatedBytes() uint64 { return state.allocatedBytes }

// RecordAllocation adds n bytes to the allocated-bytes counter. Called by
// package cc's New.
func RecordAllocation(n uint64) { state.allocatedBytes += n }

// RecordDeallocation subtracts n bytes from the allocated-bytes counter.
// Called by the collector and by Cc[T].Drop's non-buffered fast path.
func RecordDeallocation(n uint64) {
	if n > state.allocatedBytes {
		state.allocatedBytes = 0
		return
	}
	state.allocatedBytes -= n
}

// ExecutionsCount returns how many times CollectCycles has run a
// collection to completion.
func ExecutionsCount() uint64 { return state.executionsCount }

// IncrementExecutionsCount is called once per completed collection.
func IncrementExecutionsCount() { state.executionsCount++ }

// ResetForTesting restores package-level state to its zero value. It
// exists only so _test.go files in this package and in package cc can
// start each test from a clean slate without process-per-test isolation;
// mirrors the original implementation's own test-only reset_state.
func ResetForTesting() {
	state = newState()
}
