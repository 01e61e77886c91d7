package dspatch

import "reflect"

// SignalBus is a fixed-length ordered sequence of Signals exposed to a
// Component as its input or output bus for one buffer slot. Its length is
// set by the owning Component; indices are stable once set.
type SignalBus struct {
	signals []Signal
}

// NewSignalBus returns a SignalBus with n empty signal cells.
func NewSignalBus(n int) *SignalBus {
	return &SignalBus{signals: make([]Signal, n)}
}

// SignalCount returns the number of signal cells in the bus.
func (b *SignalBus) SignalCount() int {
	return len(b.signals)
}

// Get returns a mutable pointer to the i-th signal cell.
func (b *SignalBus) Get(i int) *Signal {
	return &b.signals[i]
}

// HasValue reports whether the i-th cell currently holds a value.
func (b *SignalBus) HasValue(i int) bool {
	return b.signals[i].HasValue()
}

// Type returns the runtime type held at index i, or nil if empty.
func (b *SignalBus) Type(i int) reflect.Type {
	return b.signals[i].Type()
}

// SetFrom copies the contents of other into slot i (the "copy" handoff).
func (b *SignalBus) SetFrom(i int, other *Signal) {
	b.signals[i].CopyFrom(other)
}

// MoveFrom swaps the contents of other into slot i (the "move"/O(1)
// handoff), leaving other's cell empty but its storage reusable.
func (b *SignalBus) MoveFrom(i int, other *Signal) {
	b.signals[i].Swap(other)
}

// ClearAll empties every cell in the bus.
func (b *SignalBus) ClearAll() {
	for i := range b.signals {
		b.signals[i].Reset()
	}
}

// TypedBusGet returns the value at index i as type T; see TypedGet.
func TypedBusGet[T any](b *SignalBus, i int) (T, bool) {
	return TypedGet[T](b.Get(i))
}

// TypedBusSet places v at index i; see TypedSet.
func TypedBusSet[T any](b *SignalBus, i int, v T) {
	TypedSet(b.Get(i), v)
}

// resize grows or shrinks the bus in place, preserving existing cells up to
// min(old length, n) and zeroing any newly added cells. Callers are
// responsible for ensuring no tick is in flight when resizing (spec.md
// §4.4).
func (b *SignalBus) resize(n int) {
	if n == len(b.signals) {
		return
	}
	ns := make([]Signal, n)
	copy(ns, b.signals)
	b.signals = ns
}
