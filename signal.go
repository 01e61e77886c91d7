package dspatch

import (
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Signal is a cell that optionally holds a value of any type, carrying its
// runtime type identity. It is the unit of currency between components: a
// SignalBus is an indexed sequence of Signals, and GetOutput moves or
// copies one Signal's payload into another's.
//
// The zero value is an empty Signal (HasValue reports false).
type Signal struct {
	value any
}

// HasValue reports whether the signal currently holds a value.
func (s *Signal) HasValue() bool {
	return s.value != nil
}

// Type returns the runtime type of the held value, or nil if the signal is
// empty.
func (s *Signal) Type() reflect.Type {
	if s.value == nil {
		return nil
	}
	return reflect.TypeOf(s.value)
}

// TypeHash returns a fast, stable fingerprint of the held value's type, or
// 0 if the signal is empty. It is cheaper to compare and to use as a map
// key than a reflect.Type when the caller only cares about type identity
// (e.g. circuit-wide type registries and diagnostics), not the full
// reflection interface.
func (s *Signal) TypeHash() uint64 {
	t := s.Type()
	if t == nil {
		return 0
	}
	return xxhash.Sum64String(t.PkgPath() + "." + t.String())
}

// Reset empties the signal.
func (s *Signal) Reset() {
	s.value = nil
}

// Swap exchanges the contents (value and type identity) of s and other in
// O(1) without reallocation. This is the "move" side of the handoff
// protocol described by GetOutput: the output bus keeps its Signal
// value-holder, but the payload itself moves to the consumer.
func (s *Signal) Swap(other *Signal) {
	s.value, other.value = other.value, s.value
}

// CopyFrom makes s hold the same value (and type) as other, leaving other
// untouched. This is the "copy" side of the handoff protocol, used for all
// but the last consumer of a fanned-out output.
func (s *Signal) CopyFrom(other *Signal) {
	s.value = other.value
}

// TypedGet returns the value held by s as type T. ok is false if s is
// empty or holds a value of a different type, in which case the returned
// value is the zero value of T.
func TypedGet[T any](s *Signal) (v T, ok bool) {
	if s.value == nil {
		return v, false
	}
	v, ok = s.value.(T)
	return v, ok
}

// TypedSet places v into s, replacing any previously held value.
func TypedSet[T any](s *Signal, v T) {
	s.value = v
}
