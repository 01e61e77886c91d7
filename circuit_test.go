package dspatch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mfkiwl/dspatch"
	"github.com/mfkiwl/dspatch/dflowlib"
	"github.com/mfkiwl/dspatch/dflowtest"
)

// Scenario 1: serial chain. Counter -> Inc*5 -> Probe, Series mode.
func TestCircuit_SerialChain_scenario1(t *testing.T) {
	counter := dflowlib.Counter(10)
	incs := make([]*dspatch.Component, 5)
	prev := counter
	for i := range incs {
		incs[i] = dflowlib.Inc()
		incs[i].ConnectInput(prev, 0, 0)
		prev = incs[i]
	}
	probe, probeComp := dflowtest.NewProbe()
	probeComp.ConnectInput(prev, 0, 0)

	comps := append([]*dspatch.Component{counter}, incs...)
	comps = append(comps, probeComp)
	c, err := dspatch.NewCircuit(comps...)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		c.Tick(dspatch.Series)
	}

	got := probe.All()
	if len(got) != 20 {
		t.Fatalf("got %d observations, want 20", len(got))
	}
	for i, v := range got {
		want := 10 + i + 5
		if v != want {
			t.Fatalf("observation %d: got %d, want %d", i, v, want)
		}
	}
}

// Scenario 2: parallel fan-out. Counter -> {Inc(+1)..Inc(+5)} -> a 5-input
// sink, B=3, auto-tick in Parallel mode for 100ms. Every complete sample
// the sink observes must be (n+1, n+2, n+3, n+4, n+5) for some shared n,
// even though the five branches are pipelined across 3 buffers and ticked
// concurrently.
func TestCircuit_ParallelFanOut_scenario2(t *testing.T) {
	counter := dflowlib.Counter(0)
	incs := make([]*dspatch.Component, 5)
	for i := range incs {
		k := i + 1
		incs[i] = dspatch.NewComponent("Inc", []string{"in"}, []string{"out"}, dspatch.OutOfOrder,
			func(in, out *dspatch.SignalBus) {
				if v, ok := dspatch.TypedBusGet[int](in, 0); ok {
					dspatch.TypedBusSet(out, 0, v+k)
				}
			})
		incs[i].ConnectInput(counter, 0, 0)
	}

	var mu sync.Mutex
	var samples [][5]int
	sink := dspatch.NewComponent("probe5", []string{"in0", "in1", "in2", "in3", "in4"}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			var vs [5]int
			for i := 0; i < 5; i++ {
				v, ok := dspatch.TypedBusGet[int](in, i)
				if !ok {
					return
				}
				vs[i] = v
			}
			mu.Lock()
			samples = append(samples, vs)
			mu.Unlock()
		})
	for i, inc := range incs {
		sink.ConnectInput(inc, 0, i)
	}

	comps := append([]*dspatch.Component{counter, sink}, incs...)
	c, err := dspatch.NewCircuit(comps...)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetBufferCount(3); err != nil {
		t.Fatal(err)
	}

	c.StartAutoTick(dspatch.Parallel)
	time.Sleep(100 * time.Millisecond)
	c.StopAutoTick()

	mu.Lock()
	defer mu.Unlock()
	if len(samples) == 0 {
		t.Fatal("expected at least one complete sample during 100ms of auto-tick")
	}
	for _, vs := range samples {
		n := vs[0] - 1
		for i, v := range vs {
			if want := n + i + 1; v != want {
				t.Fatalf("sample %v not coherent for shared n=%d: in%d = %d, want %d", vs, n, i, v, want)
			}
		}
	}
}

// Scenario 3 (feedback adder, simplified to int arithmetic): Counter ->
// Adder.a; Adder.sum -> Adder.b (self feedback) -> Probe. Each tick k's
// adder must see tick k-1's own output on the feedback input, producing
// the running total of every value the counter has emitted so far.
func TestCircuit_FeedbackAdder_scenario3(t *testing.T) {
	counter := dflowlib.Counter(1)
	accum := dflowlib.Adder()
	accum.ConnectInput(counter, 0, 0)
	accum.ConnectInput(accum, 0, 1)

	probe, probeComp := dflowtest.NewProbe()
	probeComp.ConnectInput(accum, 0, 0)

	c, err := dspatch.NewCircuit(counter, accum, probeComp)
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	for i := 0; i < n; i++ {
		c.Tick(dspatch.Parallel)
	}

	got := probe.All()
	if len(got) != n {
		t.Fatalf("got %d observations, want %d", len(got), n)
	}
	running := 0
	for i, v := range got {
		running += i + 1 // counter emits 1, 2, 3, ...
		if v != running {
			t.Fatalf("tick %d: got sum %d, want running total %d", i, v, running)
		}
	}
}

// Scenario 4 (scaled down): many parallel chains sourced from one counter
// should all propagate the same value coherently every tick.
func TestCircuit_ManyParallelChains_scenario4(t *testing.T) {
	const chains, length = 40, 10

	counter := dflowlib.Counter(0)
	heads := dflowtest.ParallelChains(chains, length)
	for i := 0; i < chains; i++ {
		head := heads[i*length]
		head.ConnectInput(counter, 0, 0)
	}

	sink := dspatch.NewComponent("sink", make([]string, chains), nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			first, ok := dspatch.TypedBusGet[int](in, 0)
			if !ok {
				return
			}
			for i := 1; i < chains; i++ {
				v, ok := dspatch.TypedBusGet[int](in, i)
				if !ok || v != first {
					panic("parallel chains diverged")
				}
			}
		})
	for i := 0; i < chains; i++ {
		tail := heads[i*length+length-1]
		sink.ConnectInput(tail, 0, i)
	}

	comps := append([]*dspatch.Component{counter, sink}, heads...)
	c, err := dspatch.NewCircuit(comps...)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 30; i++ {
		c.Tick(dspatch.Series)
	}
}

// Scenario 5 (simplified): dynamic rewiring under auto-tick. Pausing must
// make the circuit quiescent long enough to insert a component safely.
func TestCircuit_PauseResume_scenario5(t *testing.T) {
	a := dflowlib.Counter(0)
	b := dflowlib.PassThrough()
	b.ConnectInput(a, 0, 0)
	probe, probeComp := dflowtest.NewProbe()
	probeComp.ConnectInput(b, 0, 0)

	c, err := dspatch.NewCircuit(a, b, probeComp)
	if err != nil {
		t.Fatal(err)
	}

	c.StartAutoTick(dspatch.Parallel)
	time.Sleep(5 * time.Millisecond)

	if err := c.PauseAutoTick(); err != nil {
		t.Fatal(err)
	}

	middle := dflowlib.Inc()
	c.AddComponent(middle)
	middle.ConnectInput(a, 0, 0)
	b.ConnectInput(middle, 0, 0)

	if err := c.ResumeAutoTick(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	c.StopAutoTick()

	if probe.Count() == 0 {
		t.Fatal("expected at least one observation before and after the rewire")
	}
}

// Scenario 6 (simplified): ref-count reset regression. Grow a
// self-feeding component's fan-out from 1 to 5 to 15 (adding 4, then 10
// more sinks) while auto-ticking,
// and confirm it keeps ticking cleanly (no permanent ref-counter desync
// that would stall GetOutput's copy/move decision).
func TestCircuit_RefCountResetRegression_scenario6(t *testing.T) {
	counter := dflowlib.Counter(1)
	accum := dflowlib.Adder()
	accum.ConnectInput(counter, 0, 0)
	accum.ConnectInput(accum, 0, 1) // fan-out 1: self-feedback only, for now

	c, err := dspatch.NewCircuit(counter, accum)
	if err != nil {
		t.Fatal(err)
	}
	if accum.RefTotal(0) != 1 {
		t.Fatalf("got ref_total %d, want 1 before any extra sinks", accum.RefTotal(0))
	}

	c.StartAutoTick(dspatch.Parallel)
	time.Sleep(5 * time.Millisecond)

	for _, fanout := range []int{4, 10} {
		if err := c.PauseAutoTick(); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < fanout; i++ {
			sink := dflowlib.PassThrough()
			c.AddComponent(sink)
			sink.ConnectInput(accum, 0, 0)
		}
		if err := c.ResumeAutoTick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.StopAutoTick()

	if got := accum.RefTotal(0); got != 1+4+10 {
		t.Fatalf("got ref_total %d, want %d", got, 1+4+10)
	}
}

func TestCircuit_SetBufferCount_idempotent(t *testing.T) {
	a := dflowlib.PassThrough()
	c, err := dspatch.NewCircuit(a)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetBufferCount(3); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBufferCount(3); err != nil {
		t.Fatal(err)
	}
	if got := c.GetBufferCount(); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}

func TestCircuit_TickMode_noFeedback_sameOutputs(t *testing.T) {
	build := func() (*dspatch.Circuit, *dflowtest.Probe) {
		counter := dflowlib.Counter(5)
		inc := dflowlib.Inc()
		inc.ConnectInput(counter, 0, 0)
		probe, probeComp := dflowtest.NewProbe()
		probeComp.ConnectInput(inc, 0, 0)
		c, err := dspatch.NewCircuit(counter, inc, probeComp)
		if err != nil {
			t.Fatal(err)
		}
		return c, probe
	}

	cSeries, pSeries := build()
	for i := 0; i < 10; i++ {
		cSeries.Tick(dspatch.Series)
	}
	cParallel, pParallel := build()
	for i := 0; i < 10; i++ {
		cParallel.Tick(dspatch.Parallel)
	}

	wantSeries, wantParallel := pSeries.All(), pParallel.All()
	if len(wantSeries) != len(wantParallel) {
		t.Fatalf("got %d series observations, %d parallel", len(wantSeries), len(wantParallel))
	}
	for i := range wantSeries {
		if wantSeries[i] != wantParallel[i] {
			t.Fatalf("tick %d: series=%d parallel=%d, want equal (no feedback edges present)", i, wantSeries[i], wantParallel[i])
		}
	}
}
