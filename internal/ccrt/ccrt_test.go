package ccrt

// fakeObj is a minimal Traceable used by this package's own tests: a set
// of outgoing edges to other headers, plus hooks a test can set to observe
// finalize/drop calls or to make TraceRefs panic (scenario 5, spec.md §8).
type fakeObj struct {
	edges      []*Header
	finalizeFn func()
	dropFn     func()
	traceFn    func(v *Visitor)
}

func (f *fakeObj) TraceRefs(v *Visitor) {
	if f.traceFn != nil {
		f.traceFn(v)
		return
	}
	for _, e := range f.edges {
		v.Visit(e)
	}
}

func (f *fakeObj) RunFinalizer() {
	if f.finalizeFn != nil {
		f.finalizeFn()
	}
}

func (f *fakeObj) DropPayload() {
	if f.dropFn != nil {
		f.dropFn()
	}
}

func newFakeHeader(edges ...*Header) *Header {
	obj := &fakeObj{edges: edges}
	return NewHeader(obj, 16)
}
