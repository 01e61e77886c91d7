// Package dflowtest provides utility functions for testing circuits, the
// int-valued counterpart to the teacher's hwtest package.
package dflowtest

import (
	"sync"

	"github.com/mfkiwl/dspatch"
)

// Probe is a sink component wrapper that records the last value it
// received and how many times it has fired, for use in test assertions
// against a running or manually-ticked Circuit. It is safe to read
// concurrently with the circuit ticking, since its Process function and
// every accessor go through the same mutex.
type Probe struct {
	mu    sync.Mutex
	last  int
	got   bool
	count int
	all   []int
}

// Component returns the dspatch.Component to wire into a circuit.
func (p *Probe) Component() *dspatch.Component {
	return dspatch.NewComponent("Probe", []string{"in"}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			v, ok := dspatch.TypedBusGet[int](in, 0)
			if !ok {
				return
			}
			p.mu.Lock()
			p.last = v
			p.got = true
			p.count++
			p.all = append(p.all, v)
			p.mu.Unlock()
		})
}

// Last returns the most recently received value and whether any value has
// been received yet.
func (p *Probe) Last() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.got
}

// Count returns the number of times the probe has fired.
func (p *Probe) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// All returns every value received so far, in order.
func (p *Probe) All() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.all...)
}

// NewProbe returns a fresh Probe and its wired Component together, since
// the two are almost always needed at once.
func NewProbe() (*Probe, *dspatch.Component) {
	p := &Probe{}
	return p, p.Component()
}
