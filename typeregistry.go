package dspatch

import (
	"reflect"
	"sync"
)

// typeRegistry records, by Signal.TypeHash, every distinct concrete Go type
// that has flowed through a Circuit's wires. It answers spec.md §9's
// "Dynamically typed signal cell: required operations are ... type
// identity ..." at circuit scope rather than per-signal: a host embedding
// dspatch can ask "what concrete types has this circuit actually carried"
// without walking every component's buffers by hand.
//
// Nil-receiver-safe like Metrics, since a Component always holds a
// *typeRegistry that is nil until a Circuit wires one in via
// SetTypeRegistry/AddComponent.
type typeRegistry struct {
	mu    sync.Mutex
	types map[uint64]reflect.Type
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{types: make(map[uint64]reflect.Type)}
}

// record notes s's held type, if any. Cheap on the repeat path: TypeHash is
// an xxhash over the type's name, not a full reflect.Type comparison, so a
// hot wire carrying the same type on every tick only pays a map lookup.
func (r *typeRegistry) record(s *Signal) {
	if r == nil || !s.HasValue() {
		return
	}
	h := s.TypeHash()
	r.mu.Lock()
	if _, ok := r.types[h]; !ok {
		r.types[h] = s.Type()
	}
	r.mu.Unlock()
}

func (r *typeRegistry) seenTypes() []reflect.Type {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reflect.Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	return out
}
