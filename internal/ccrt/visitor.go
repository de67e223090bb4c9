package ccrt

// visitorMode selects which of the collector's phases a Visitor is
// currently servicing. Unexported: user Trace implementations only ever
// call Visitor.Visit and never need to know which phase is running.
type visitorMode uint8

const (
	visitorModeProbe visitorMode = iota
	visitorModeCounting
	visitorModeRootTracing
)

// Visitor is the concrete type behind the Context a user's Tracer.TraceRefs
// method receives (package cc wraps this behind an exported Context, per
// spec.md §6's "trace visitor interface"). Exactly one outgoing strong
// reference must be reported to Visit per call.
type Visitor struct {
	mode visitorMode

	// used by visitorModeCounting and visitorModeRootTracing
	traced *List

	// used by visitorModeProbe
	sawAnyEdge bool
}

// Visit is called once per outgoing strong reference a payload's TraceRefs
// implementation holds. It is the single operation spec.md §6 exposes to
// user trace code.
func (v *Visitor) Visit(h *Header) {
	switch v.mode {
	case visitorModeProbe:
		v.sawAnyEdge = true
	case visitorModeCounting:
		v.visitCounting(h)
	case visitorModeRootTracing:
		v.visitRootTracing(h)
	}
}

// visitCounting implements phase 1 (spec.md §4.5): every visited header
// has its TC incremented; a header visited for the first time this
// collection is additionally added to TRACED and recursed into so its own
// outgoing edges are counted too.
//
// A visited header can never still carry mark InPossibleCycles here:
// phase 0 (collector.go's drain step) has already swapped the whole of
// POSSIBLE_CYCLES out and reset every candidate's mark to NonMarked
// before phase 1 starts tracing, and nothing buffers new headers onto
// POSSIBLE_CYCLES while a collection is in flight (the mutator does not
// run concurrently with the collector — see spec.md §5).
func (v *Visitor) visitCounting(h *Header) {
	m := h.Marker()
	if m.GetMark() == NonMarked {
		m = m.ResetTC()
		next, err := m.IncTC()
		if err != nil {
			// A single header referenced by more than MaxRC other
			// headers inside one SCC is not something real programs do;
			// keep it conservatively classified as a root (it will never
			// reach TC==RC, so it can't be misclassified as garbage) and
			// stop tracing through this particular edge.
			v.traced.Add(h)
			h.SetMarker(m.WithMark(InList))
			return
		}
		v.traced.Add(h)
		h.SetMarker(next.WithMark(InList))
		h.Trace(v)
		return
	}

	if next, err := m.IncTC(); err == nil {
		h.SetMarker(next)
	}
}

// visitRootTracing implements phase 2 (spec.md §4.5): starting from a
// confirmed root, every header still reachable is pulled out of TRACED
// (which by now holds only garbage candidates) and recursed into. A
// header visited twice during root tracing is a no-op: it was already
// pulled out of TRACED on the first visit, so its mark is no longer
// InList.
func (v *Visitor) visitRootTracing(h *Header) {
	if h.Marker().GetMark() != InList {
		return
	}
	// TC is reset back to 0 (the spec's "sentinel indicating live") rather
	// than left at whatever phase 1 counted: this header may never be
	// visited again before a future collection, and invariant P3 requires
	// 0 <= TC <= RC to hold, with TC == 0 at external quiescence, for
	// every header — not just ones phase 1 happens to revisit.
	v.traced.Remove(h)
	h.SetMarker(h.Marker().ResetTC().WithMark(NonMarked))
	h.Trace(v)
}

// confirmRoots runs phase 2 to completion: every header in traced whose
// RC exceeds its TC is a root (some reference the collector never
// traversed still points to it — spec.md §4.5), and everything
// transitively reachable from a root is live. confirmRoots removes every
// live header from traced, leaving only headers unreachable from any
// mutator-held reference.
func confirmRoots(traced *List) {
	var roots []*Header
	traced.Each(func(h *Header) {
		if h.Marker().IsRoot() {
			roots = append(roots, h)
		}
	})

	v := &Visitor{mode: visitorModeRootTracing, traced: traced}
	for _, h := range roots {
		v.visitRootTracing(h)
	}
}

// tracePhases runs phases 1 and 2 over candidates, leaving traced holding
// exactly the headers phase 2 could not reach from any root (spec.md §4.5).
//
// A panic escaping a user's TraceRefs — spec.md §5's "mutator code run
// during tracing must not panic, but if it does, the collector must not
// leave corrupted state behind" — is recovered here: every header phase 1
// had already linked into traced is pushed back onto POSSIBLE_CYCLES with
// TC reset to 0 and mark restored to InList's buffered equivalent, and so is
// every candidate phase 0 drained out of POSSIBLE_CYCLES that the panic
// stopped the loop below from ever reaching — see requeueAfterTracePanic —
// so a later collection re-traces all of them from a clean slate, and the
// panic is then re-raised to the caller of CollectCycles.
func tracePhases(candidates []*Header, traced *List) {
	defer func() {
		if r := recover(); r != nil {
			requeueAfterTracePanic(candidates, traced)
			panic(r)
		}
	}()

	for _, h := range candidates {
		beginCandidate(h, traced)
	}

	confirmRoots(traced)
}

// requeueAfterTracePanic restores every header phase 0/1 had touched to a
// state a future collection can safely re-trace from. This has to cover two
// disjoint sets: headers phase 1 already linked into traced (as a candidate
// beginCandidate reached, or as the target of another candidate's edge), and
// the remainder of candidates — headers phase 0 already drained out of
// POSSIBLE_CYCLES that the panic stopped the loop in tracePhases from ever
// reaching. A candidate sitting purely inside an otherwise-unreferenced
// cycle has no mutator-visible handle left to re-buffer it on a later
// decrement, so leaving it off of every list here would leak it permanently.
func requeueAfterTracePanic(candidates []*Header, traced *List) {
	Log.Error().Int("traced", traced.Len()).Int("candidates", len(candidates)).
		Msg("ccrt: panic during trace, requeueing candidates")

	traced.Drain(func(h *Header) {
		state.possibleCycles.Add(h)
		h.SetMarker(h.Marker().ResetTC().WithMark(InPossibleCycles))
	})

	for _, h := range candidates {
		if h.Marker().GetMark() == InPossibleCycles {
			continue // already requeued above, reached as a member of traced
		}
		state.possibleCycles.Add(h)
		h.SetMarker(h.Marker().ResetTC().WithMark(InPossibleCycles))
	}
}

// beginCandidate seeds phase 1 for a single POSSIBLE_CYCLES candidate: it
// is added to TRACED and recursed into, without incrementing its own TC
// (there is no in-edge to attribute the increment to — it is a traversal
// root, not a target).
//
// h may already have been reached (and fully traced, including its own
// outgoing edges) as a target of an earlier candidate's edge earlier in
// this same phase 1 pass — visitCounting's first-visit branch does exactly
// what beginCandidate does. When that happened, h's mark is already InList
// and this call is a no-op: re-running it would wipe the TC the earlier
// visit attributed to h's one real in-edge and double-link h into traced.
func beginCandidate(h *Header, traced *List) {
	if h.Marker().GetMark() == InList {
		return
	}
	traced.Add(h)
	h.SetMarker(h.Marker().WithMark(InList))
	h.Trace(&Visitor{mode: visitorModeCounting, traced: traced})
}
