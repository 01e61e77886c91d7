package dflowlib

import "github.com/mfkiwl/dspatch"

const (
	pIn  = "in"
	pOut = "out"
)

// Input creates a source component with no inputs: every tick it calls f
// and writes the result to its single output.
//
//	Outputs: out
//	Function: out = f()
func Input(f func() int) *dspatch.Component {
	return dspatch.NewComponent("Input", nil, []string{pOut}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			dspatch.TypedBusSet(out, 0, f())
		})
}

// Output creates a sink component with no outputs: every tick it calls f
// with whatever value arrived on its single input, or does nothing if the
// input wasn't written this tick.
//
//	Inputs: in
//	Function: f(in)
func Output(f func(int)) *dspatch.Component {
	return dspatch.NewComponent("Output", []string{pIn}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			if v, ok := dspatch.TypedBusGet[int](in, 0); ok {
				f(v)
			}
		})
}
