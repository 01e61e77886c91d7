package dflowtest

import (
	"github.com/mfkiwl/dspatch"
	"github.com/mfkiwl/dspatch/dflowlib"
)

// SerialChain builds n PassThrough components wired in a straight line
// and returns them in wire order (chain[0] has no input wired, chain[n-1]
// feeds nothing). Used by stress tests that need a long chain without any
// domain-specific arithmetic in the way.
func SerialChain(n int) []*dspatch.Component {
	chain := make([]*dspatch.Component, n)
	for i := range chain {
		chain[i] = dflowlib.PassThrough()
		if i > 0 {
			chain[i].ConnectInput(chain[i-1], 0, 0)
		}
	}
	return chain
}

// ParallelChains builds n independent SerialChains of length length each,
// returning the full flattened component list (all chains concatenated)
// ready to hand to dspatch.NewCircuit. Used to build the wide, shallow
// 500x20 stress topology described in spec.md §8.
func ParallelChains(n, length int) []*dspatch.Component {
	var all []*dspatch.Component
	for i := 0; i < n; i++ {
		all = append(all, SerialChain(length)...)
	}
	return all
}

// RunTicks runs n manual ticks of c in the given mode.
func RunTicks(c *dspatch.Circuit, mode dspatch.TickMode, n int) {
	for i := 0; i < n; i++ {
		c.Tick(mode)
	}
}
