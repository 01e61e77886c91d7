package dflowlib

import "github.com/mfkiwl/dspatch"

const (
	pA   = "a"
	pB   = "b"
	pSum = "sum"
)

// PassThrough creates a component that copies its single input straight to
// its single output, unmodified. Used to build long chains in serial/fan-
// out benchmarks and stress tests without any domain-specific arithmetic.
//
//	Inputs: in
//	Outputs: out
//	Function: out = in
func PassThrough() *dspatch.Component {
	return dspatch.NewComponent("PassThrough", []string{pIn}, []string{pOut}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			if v, ok := dspatch.TypedBusGet[int](in, 0); ok {
				dspatch.TypedBusSet(out, 0, v)
			}
		})
}

// Inc creates a component that adds 1 to its single input.
//
//	Inputs: in
//	Outputs: out
//	Function: out = in + 1
func Inc() *dspatch.Component {
	return dspatch.NewComponent("Inc", []string{pIn}, []string{pOut}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			if v, ok := dspatch.TypedBusGet[int](in, 0); ok {
				dspatch.TypedBusSet(out, 0, v+1)
			}
		})
}

// Adder creates a two-input sum component. When wired into a feedback loop
// (one of its inputs sourced, directly or indirectly, from its own output)
// an unwritten input on the first tick is simply treated as 0, exercising
// the feedback-edge/partial-input path described by spec.md §4.1.
//
//	Inputs: a, b
//	Outputs: sum
//	Function: sum = a + b
func Adder() *dspatch.Component {
	return dspatch.NewComponent("Adder", []string{pA, pB}, []string{pSum}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			a, _ := dspatch.TypedBusGet[int](in, 0)
			b, _ := dspatch.TypedBusGet[int](in, 1)
			dspatch.TypedBusSet(out, 0, a+b)
		})
}

// Counter creates a stateful source: it has no inputs, and on every tick
// emits an internal counter's current value, then increments it. start
// sets the first emitted value.
//
//	Outputs: out
//	Function: out = n; n++ (n starts at start)
func Counter(start int) *dspatch.Component {
	n := start
	return dspatch.NewComponent("Counter", nil, []string{pOut}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			dspatch.TypedBusSet(out, 0, n)
			n++
		})
}
