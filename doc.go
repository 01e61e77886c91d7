// Package dspatch is a dataflow execution engine.
//
// Users build a directed graph (a [Circuit]) of processing nodes
// ([Component]) with typed input and output ports connected by [Wire]s. The
// engine drives the graph through discrete ticks: on each tick, every
// component consumes the outputs its upstream neighbors produced on the
// previous tick and produces new outputs of its own. Feedback edges
// (cycles) are detected at runtime rather than by graph analysis, signal
// values are dynamically typed, and successive ticks are pipelined across
// a ring of buffer slots and worker goroutines while still preserving
// per-component processing order on request.
//
// The engine does not know how to transform inputs into outputs: that is
// supplied by the host program as a [ProcessFunc] passed to [NewComponent]. dspatch
// is only responsible for scheduling those calls correctly and fast.
package dspatch
