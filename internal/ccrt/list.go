package ccrt

// List is an intrusive, allocation-free doubly-linked list of *Header.
// Every Header carries exactly one next/prev pair (see header.go), so a
// Header can be linked into at most one List at a time — invariant I3.
//
// Following spec.md §4.3, the two operations below are deliberately
// asymmetric about when the caller touches the ownership flag (the Mark
// stored in the header's Marker):
//
//   - add links the node into the list first, then the caller is expected
//     to update the header's Mark; by the time add returns the node is
//     already physically reachable from the list, so any bookkeeping that
//     runs before add is still safe to fail without leaving a half-linked
//     node.
//   - remove unlinks the node first and only then is it safe for the
//     caller to run further bookkeeping (e.g. decrementing a counter) that
//     might itself want to re-traverse the list.
//
// This package never panics out of add/remove under normal operation;
// the ordering rule is preserved anyway so that future pedantic-debug
// assertions (Options.PedanticDebugAssertions) can be slotted in at either
// end without moving code around.
//
// This type mirrors the doubly-linked, most-recently-used-at-head list in
// MiraiMindz-watt/capacitor's pkg/cache/memory/lru.go, adapted from a
// generic key-node list to one threaded directly through Header.
type List struct {
	head *Header
	tail *Header
	size int
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Len returns the number of headers currently linked into l.
func (l *List) Len() int { return l.size }

// IsEmpty reports whether the list has no elements.
func (l *List) IsEmpty() bool { return l.size == 0 }

// Add links h at the front of l. h must not currently be linked into any
// list.
func (l *List) Add(h *Header) {
	h.prev = nil
	h.next = l.head
	if l.head != nil {
		l.head.prev = h
	} else {
		l.tail = h
	}
	l.head = h
	l.size++
}

// Remove unlinks h from l. h must currently be linked into l.
func (l *List) Remove(h *Header) {
	if h.prev != nil {
		h.prev.next = h.next
	} else {
		l.head = h.next
	}
	if h.next != nil {
		h.next.prev = h.prev
	} else {
		l.tail = h.prev
	}
	h.prev = nil
	h.next = nil
	l.size--
}

// RemoveFirst unlinks and returns the head of the list, or nil if empty.
func (l *List) RemoveFirst() *Header {
	h := l.head
	if h == nil {
		return nil
	}
	l.Remove(h)
	return h
}

// Drain removes every header from l, calling f on each in head-to-tail
// order, after the header is unlinked from l, so f may link it into another
// list.
func (l *List) Drain(f func(*Header)) {
	for h := l.RemoveFirst(); h != nil; h = l.RemoveFirst() {
		f(h)
	}
}

// Append moves every header from other onto the end of l, leaving other
// empty. O(1).
func (l *List) Append(other *List) {
	if other.size == 0 {
		return
	}
	if l.size == 0 {
		l.head = other.head
		l.tail = other.tail
		l.size = other.size
	} else {
		l.tail.next = other.head
		other.head.prev = l.tail
		l.tail = other.tail
		l.size += other.size
	}
	other.head = nil
	other.tail = nil
	other.size = 0
}

// Each calls f for every header currently in the list, head to tail. f
// must not mutate the list.
func (l *List) Each(f func(*Header)) {
	for h := l.head; h != nil; h = h.next {
		f(h)
	}
}

// Contains reports whether h is currently linked into l. O(n); used only
// by pedantic-debug-assertions and tests.
func (l *List) Contains(h *Header) bool {
	for cur := l.head; cur != nil; cur = cur.next {
		if cur == h {
			return true
		}
	}
	return false
}
