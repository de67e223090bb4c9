package ccrt

// maxFinalizationRounds bounds how many times CollectCycles will re-run a
// collection because finalizers kept producing more live references. A
// collection usually completes in two rounds; a finalizer that keeps
// resurrecting a little bit of the garbage on every run (see the package
// doc for CollectCycles) is the only realistic way to exhaust this, and at
// that point the mutator has already been stopped for too long — the
// remaining candidates are simply left in POSSIBLE_CYCLES for next time.
const maxFinalizationRounds = 10

// CollectCycles runs the collector to completion: phase 0 drains
// POSSIBLE_CYCLES, phases 1 and 2 (implemented in visitor.go) classify
// every candidate as live or garbage, and phase 3 finalizes, drops and
// deallocates whatever was classified as garbage. Re-entrant calls (from
// inside a Trace, a finalizer or a payload drop) are no-ops, matching
// spec.md §5's "the collector never recurses into itself" invariant.
func CollectCycles() {
	if state.collecting || state.finalizing || state.dropping {
		return
	}
	state.collecting = true
	defer func() { state.collecting = false }()

	Log.Debug().Int("buffered", state.possibleCycles.Len()).Msg("ccrt: collection started")

	rounds := 0
	for ; rounds < maxFinalizationRounds && !state.possibleCycles.IsEmpty(); rounds++ {
		runCollectionRound()
	}
	IncrementExecutionsCount()

	Log.Debug().Int("rounds", rounds).Uint64("allocated_bytes", AllocatedBytes()).Msg("ccrt: collection finished")
}

// runCollectionRound performs one pass of phases 0 through 3 over whatever
// is currently buffered in POSSIBLE_CYCLES.
func runCollectionRound() {
	// Phase 0 must fully reset every candidate (TC=0, mark=NonMarked)
	// before phase 1 traces any of them: a plain Go slice, not an
	// intrusive List, holds the working set here, since a header reached
	// by another candidate's edge during phase 1 needs to be linked into
	// traced while phase 1 is still iterating this collection — and a
	// header can only ever be linked into one intrusive list at a time
	// (invariant I3). Nothing else needs to query CANDIDATES membership
	// after this point, so the slice costs nothing a list would have
	// bought.
	var candidates []*Header
	state.possibleCycles.Drain(func(h *Header) {
		h.SetMarker(h.Marker().ResetTC().WithMark(NonMarked))
		candidates = append(candidates, h)
	})

	traced := NewList()
	tracePhases(candidates, traced)

	if traced.IsEmpty() {
		return
	}

	if pedanticDebugAssertions {
		traced.Each(func(h *Header) {
			m := h.Marker()
			AssertInvariant(h, m.TC() == m.RC(), "non-root header leaving phase 2 with TC != RC")
			AssertInvariant(h, m.GetMark() == InList, "non-root header leaving phase 2 unmarked")
		})
	}

	state.finalizing = true
	hasFinalized := false
	traced.Each(func(h *Header) {
		if finalizeRecovering(h) {
			hasFinalized = true
		}
	})
	state.finalizing = false

	if !hasFinalized {
		deallocateList(traced)
		return
	}

	// A finalizer may have resurrected some of these headers by handing
	// out a new strong reference to them (e.g. stashing a cloned Cc
	// somewhere reachable from a root). Requeue the whole batch rather
	// than re-deriving which ones: the next round's phase 1/2 will
	// re-trace from scratch and correctly reclassify anything still
	// unreachable as garbage, and anything resurrected as a root.
	Log.Debug().Int("requeued", traced.Len()).Msg("ccrt: finalizer resurrection, requeueing")
	var requeued []*Header
	traced.Each(func(h *Header) { requeued = append(requeued, h) })
	state.possibleCycles.Append(traced)
	for _, h := range requeued {
		h.SetMarker(h.Marker().WithMark(InPossibleCycles))
	}
}

// finalizeRecovering runs a single header's finalizer, catching any panic
// so one misbehaving finalizer can't stop the rest of the batch from
// running (spec.md §5: "finalizers are run even if previous finalizers
// panicked, best-effort; each individual panic still aborts its own
// finalizer"). The finalized flag is set by Header.Finalize before it
// calls into user code, so invariant I5 ("a finalizer runs at most once")
// holds regardless of whether it panicked.
func finalizeRecovering(h *Header) (ran bool) {
	defer func() {
		if r := recover(); r != nil {
			ran = true
			Log.Error().Interface("panic", r).Msg("ccrt: finalizer panicked, continuing with remaining finalizers")
		}
	}()
	return h.Finalize()
}

// deallocateList drops every payload in to_deallocate, then releases each
// header. Payloads are dropped before any header is released so that a
// Drop implementation on one object in the batch can still safely observe
// (though not trace, finalize or clone) another object in the same batch
// that happens to still be a valid Go value at that point.
func deallocateList(toDeallocate *List) {
	state.dropping = true
	defer func() { state.dropping = false }()

	Log.Debug().Int("count", toDeallocate.Len()).Msg("ccrt: dropping cycle")

	toDeallocate.Each(func(h *Header) {
		h.DropPayload()
	})

	toDeallocate.Drain(func(h *Header) {
		h.SetMarker(h.Marker().WithDeallocating())
		RecordDeallocation(h.Size())
	})
}
