package cc

// cleanerMap is the lazily-allocated Cc payload backing a Cleaner,
// supplemented from original_source/src/cleaners/mod.rs's CleanerMap: a
// collected object whose only job is to run a closure once when removed
// from the map (explicitly, via Cleanable.Clean) or when the whole map is
// dropped (DropValue, below).
//
// It traces nothing: a cleaning action closure must never be allowed to
// observe the container object it was registered from, since that closure
// runs from inside a Cc's drop path.
type cleanerMap struct {
	NoFinalize
	actions map[uint64]func()
	nextKey uint64
}

func (*cleanerMap) TraceRefs(*Context) {
	// Deliberately empty: see the doc comment above. Tracing would let a
	// cleaning action reach back into the object being cleaned.
}

func (m *cleanerMap) DropValue() {
	for _, action := range m.actions {
		action()
	}
	m.actions = nil
}

// Cleaner registers cleaning actions that run once, when the Cleaner's
// container object is dropped (or earlier, via Cleanable.Clean). It is a
// faster, lower-ceremony alternative to implementing Finalizer, for
// payloads that just need to run plain cleanup code and have no need to
// see a consistent view of the rest of the object graph.
//
// A Cleaner allocates nothing until the first call to Register.
type Cleaner struct {
	NoFinalize
	cleanerCc Cc[cleanerMap]
}

// NewCleaner returns an empty Cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// TraceRefs implements Tracer by doing nothing, for the same reason
// cleanerMap.TraceRefs does: tracing through to the registered actions
// would let one reach back into the container object from inside its own
// drop path.
func (*Cleaner) TraceRefs(*Context) {}

// DropValue drops the Cleaner's internal strong handle, running every
// cleaning action that hasn't already run. Anonymously embed Cleaner in a
// payload struct (as opposed to giving it a field name) so this method,
// TraceRefs and Finalize are promoted onto the payload automatically and
// dispatched by cc.New's vtable, the same way NoFinalize/NoDrop are meant
// to be embedded.
func (c *Cleaner) DropValue() {
	if !c.cleanerCc.IsValid() {
		return
	}
	c.cleanerCc = c.cleanerCc.Drop()
}

// Register records a cleaning action, returning a Cleanable that can be
// used to run it manually. Never let action capture a Cc pointing back at
// the object that owns this Cleaner, or that object can never be
// collected.
func (c *Cleaner) Register(action func()) Cleanable {
	if !c.cleanerCc.IsValid() {
		c.cleanerCc = New(cleanerMap{actions: make(map[uint64]func())})
	}

	m := c.cleanerCc.Value()
	key := m.nextKey
	m.nextKey++
	m.actions[key] = action

	return Cleanable{
		cleanerMap: c.cleanerCc.Downgrade(),
		key:        key,
	}
}

// Cleanable represents a single cleaning action registered in a Cleaner.
type Cleanable struct {
	cleanerMap Weak[cleanerMap]
	key        uint64
}

// Clean runs the cleaning action immediately, if it has not already run.
// A cleaning action never runs twice, so calling Clean after the action
// has already run (manually, or because the Cleaner was dropped) is a
// no-op.
func (c Cleanable) Clean() {
	cc, ok := c.cleanerMap.Upgrade()
	if !ok {
		return
	}
	defer cc.Drop()

	m := cc.Value()
	action, ok := m.actions[c.key]
	if !ok {
		return
	}
	delete(m.actions, c.key)
	action()
}
