package ccrt

// Traceable is the type-erased dispatch surface a Header uses to reach the
// payload it was allocated with, without ccrt itself needing to know the
// payload's concrete type. Package cc's generic ccBox[T] implements this
// interface by delegating to T's Tracer/Finalizer/Dropper implementations;
// ccrt only ever sees the interface, the way the teacher's detector.go
// dispatches through shadowmem/syncshadow without caring what produced the
// address it was handed.
//
// This plays the role spec.md §3 assigns to CcBox's vtable_or_typeinfo
// field: in the original Rust implementation that field is a real vtable
// pointer (a fat pointer to a trait object); Go's interfaces already carry
// type+method-table information, so storing the payload's own owning box
// as a Traceable is enough.
type Traceable interface {
	// TraceRefs enumerates every outgoing strong reference the payload
	// holds by calling v.Visit once per reference. See spec.md §4.1.
	TraceRefs(v *Visitor)

	// RunFinalizer invokes the payload's finalizer. Idempotence (spec.md
	// invariant I5) is enforced by the collector via Header.marker's
	// finalized flag, not by this method.
	RunFinalizer()

	// DropPayload destroys the payload, after which the payload must
	// never be traced, finalized or read again (invariant I4).
	DropPayload()
}

// Header is the per-allocation metadata block spec.md §3 calls CcBox: the
// counter/marker word, the single next/prev link slot shared by every
// intrusive list that might own this header, and the vtable used to reach
// the payload. It carries no type parameter — the generic ccBox[T] in
// package cc embeds a Header as its first field and supplies the
// Traceable.
type Header struct {
	marker Marker
	obj    Traceable

	// prev/next implement whichever list currently owns this header
	// (POSSIBLE_CYCLES, or TRACED during a collection).
	// Invariant I3: at most one list owns a header at a time.
	prev, next *Header

	// size is the byte size package cc's New attributed to this
	// allocation (sizeof the header plus sizeof the payload), used only
	// to keep state.go's AllocatedBytes counter accurate across New and
	// the collector's deallocate step.
	size uint64

	// allocSite is populated only when Options.PedanticDebugAssertions is
	// set; see debug.go. Empty otherwise, at zero cost.
	allocSite string

	// weakCount is the number of live Weak[T] handles pointing at this
	// header. Kept as a plain field rather than packed into Marker the
	// way the original implementation's WeakCounterMarker packs an
	// "accessible" bit alongside a 15-bit counter into one extra machine
	// word: Marker.IsDropped already serves as that accessible bit here,
	// so there is no packing benefit left to chase, just a counter.
	weakCount uint32
}

// NewHeader returns a Header for a freshly allocated object with RC=1,
// TC=0, and no list membership. size is recorded for later bookkeeping by
// RecordAllocation/RecordDeallocation but otherwise unused by this
// package.
func NewHeader(obj Traceable, size uint64) *Header {
	return &Header{
		marker: NewMarker(),
		obj:    obj,
		size:   size,
	}
}

// Size returns the byte size this header was created with.
func (h *Header) Size() uint64 { return h.size }

// Marker returns the header's counter/marker word.
func (h *Header) Marker() Marker { return h.marker }

// SetMarker overwrites the header's counter/marker word. Exported for use
// by package cc (Cc[T].FinalizeAgain clears the finalized flag through it).
func (h *Header) SetMarker(m Marker) { h.marker = m }

// Obj returns the header's Traceable dispatch target.
func (h *Header) Obj() Traceable { return h.obj }

// AllocSite returns the captured allocation-site description, or "" if
// none was captured (the common case).
func (h *Header) AllocSite() string { return h.allocSite }

// SetAllocSite is called once, at allocation time, by package cc when
// pedantic debug assertions are enabled.
func (h *Header) SetAllocSite(site string) { h.allocSite = site }

// Trace calls the payload's TraceRefs through the vtable.
func (h *Header) Trace(v *Visitor) { h.obj.TraceRefs(v) }

// Finalize runs the payload's finalizer exactly once, tracking the
// finalized-once flag (invariant I5) on the marker word. Returns true if
// the finalizer actually ran this call.
func (h *Header) Finalize() bool {
	if h.marker.IsFinalized() {
		return false
	}
	h.marker = h.marker.WithFinalized()
	h.obj.RunFinalizer()
	return true
}

// DropPayload destroys the payload and marks the header dropped (ghost
// state, invariant I4).
func (h *Header) DropPayload() {
	h.obj.DropPayload()
	h.marker = h.marker.WithDropped()
}

// WeakCount returns the number of live Weak handles pointing at h.
func (h *Header) WeakCount() uint32 { return h.weakCount }

// IncWeak increments the weak count, returning ErrOverflow if it is
// already at MaxRC. The original caps this at a 15-bit counter for packing
// reasons that don't apply to an unpacked field, so this package uses the
// same ceiling as RC/TC purely for consistency, not necessity.
func (h *Header) IncWeak() error {
	if h.weakCount >= MaxRC {
		return &ErrOverflow{Counter: "Weak"}
	}
	h.weakCount++
	return nil
}

// DecWeak decrements the weak count. Decrementing a zero weak count is a
// programmer error and panics, mirroring Marker.DecRC.
func (h *Header) DecWeak() {
	if h.weakCount == 0 {
		panic("ccrt: decrementing a Header with weak count already zero")
	}
	h.weakCount--
}

// IsAccessible reports whether it is currently safe to read or upgrade
// this header. It reports false once the payload has been dropped, and
// false while the collector is dropping if the header carries the InQueue
// mark. The collector's own drop step (deallocateList) leaves a batch's
// headers marked InList, so a batch member whose payload has not been
// dropped yet still reports true.
func (h *Header) IsAccessible() bool {
	if h.marker.IsDropped() {
		return false
	}
	if h.marker.GetMark() == InQueue && IsDropping() {
		return false
	}
	return true
}

// IsLeaf reports whether the payload has no reachable outgoing strong
// references at all, in which case the drop fast path (spec.md §4.4) can
// skip buffering it onto POSSIBLE_CYCLES entirely: a leaf can never sit on
// a cycle. Determined by running a trace pass and checking whether any
// edge was reported.
func (h *Header) IsLeaf() bool {
	v := &Visitor{mode: visitorModeProbe}
	h.Trace(v)
	return !v.sawAnyEdge
}
