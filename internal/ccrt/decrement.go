package ccrt

// Retain implements the clone fast path (spec.md §4.2's inc_rc plus the
// "clone also marks alive" note in original_source/src/cc.rs): RC is
// incremented and, since the header now provably has an extra live
// handle, it is pulled out of POSSIBLE_CYCLES if it happened to be
// sitting there from an earlier partial decrement.
func Retain(h *Header) error {
	m, err := h.Marker().IncRC()
	if err != nil {
		return err
	}
	h.SetMarker(m)
	Unbuffer(h)
	return nil
}

// Unbuffer removes h from POSSIBLE_CYCLES if it is currently buffered
// there, resetting its mark to NonMarked. A no-op otherwise, including on a
// header that is mid-collection (InList/InQueue): that is what happens when
// a finalizer run by the collector Retains a header being finalized.
func Unbuffer(h *Header) {
	if h.Marker().GetMark() != InPossibleCycles {
		return
	}
	state.possibleCycles.Remove(h)
	h.SetMarker(h.Marker().WithMark(NonMarked))
}

// ReleaseOrBuffer implements the drop fast path (spec.md §4.4). It
// reports true if the header was fully reclaimed synchronously (RC
// reached zero and no cycle was possible), false if the header is either
// still live or has been left buffered on POSSIBLE_CYCLES awaiting a
// future CollectCycles.
func ReleaseOrBuffer(h *Header) bool {
	// A header with this mark is owned by a collection (linked into
	// TRACED from phase 1 through the drop step, or already reclaimed by
	// the collector); the collector, not this function, decides its
	// fate. Just account for the decrement and get out of the way.
	if mark := h.Marker().GetMark(); mark == InList || mark == InQueue {
		m, _ := h.Marker().DecRC()
		h.SetMarker(m)
		return false
	}

	if h.Marker().RC() != 1 {
		m, _ := h.Marker().DecRC()
		h.SetMarker(m)
		bufferIfNotLeaf(h)
		return false
	}

	return releaseLast(h)
}

// releaseLast handles RC==1: this handle is the only thing keeping the
// header alive, so the header cannot be part of a pending cycle — unless
// its own finalizer hands out a new reference to it (resurrection).
func releaseLast(h *Header) bool {
	if !h.Marker().IsFinalized() {
		state.finalizing = true
		h.Finalize()
		state.finalizing = false

		if h.Marker().RC() != 1 {
			// The finalizer cloned a handle to h (or something reachable
			// from it resurrected h indirectly). h is definitely still
			// live; treat the decrement this call represents like any
			// other non-last decrement.
			m, _ := h.Marker().DecRC()
			h.SetMarker(m)
			bufferIfNotLeaf(h)
			return false
		}
	}

	m, _ := h.Marker().DecRC() // RC: 1 -> 0
	h.SetMarker(m)
	Unbuffer(h)

	state.dropping = true
	h.DropPayload()
	state.dropping = false

	h.SetMarker(h.Marker().WithDeallocating())
	RecordDeallocation(h.Size())
	return true
}

// bufferIfNotLeaf adds h to POSSIBLE_CYCLES unless it is already there or
// it provably cannot sit on a cycle (spec.md §4.4's leaf-type skip).
func bufferIfNotLeaf(h *Header) {
	if h.Marker().GetMark() == InPossibleCycles {
		return
	}
	if h.IsLeaf() {
		return
	}
	state.possibleCycles.Add(h)
	h.SetMarker(h.Marker().WithMark(InPossibleCycles))
}
