package dspatch_test

import (
	"context"
	"testing"

	"github.com/mfkiwl/dspatch"
)

func TestComponent_PortIntrospection(t *testing.T) {
	c := dspatch.NewComponent("mix", []string{"a", "b"}, []string{"sum"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})

	if got := c.GetInputCount(); got != 2 {
		t.Fatalf("GetInputCount() = %d, want 2", got)
	}
	if got := c.GetOutputCount(); got != 1 {
		t.Fatalf("GetOutputCount() = %d, want 1", got)
	}
	if got := c.GetInputName(0); got != "a" {
		t.Fatalf("GetInputName(0) = %q, want %q", got, "a")
	}
	if got := c.GetInputName(1); got != "b" {
		t.Fatalf("GetInputName(1) = %q, want %q", got, "b")
	}
	if got := c.GetOutputName(0); got != "sum" {
		t.Fatalf("GetOutputName(0) = %q, want %q", got, "sum")
	}
	if got := c.ProcessOrderValue(); got != dspatch.OutOfOrder {
		t.Fatalf("ProcessOrderValue() = %v, want OutOfOrder", got)
	}
}

func TestComponent_SetInputCount_resizesPortsAndBuses(t *testing.T) {
	var seen int
	c := dspatch.NewComponent("mix", []string{"a"}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) { seen = in.SignalCount() })
	c.SetBufferCount(1)

	c.SetInputCount(3, []string{"x", "", "z"})
	if got := c.GetInputCount(); got != 3 {
		t.Fatalf("GetInputCount() = %d, want 3", got)
	}
	if got := c.GetInputName(0); got != "x" {
		t.Fatalf("GetInputName(0) = %q, want %q", got, "x")
	}
	if got := c.GetInputName(1); got != "port1" {
		t.Fatalf("GetInputName(1) = %q, want default %q", got, "port1")
	}
	if got := c.GetInputName(2); got != "z" {
		t.Fatalf("GetInputName(2) = %q, want %q", got, "z")
	}

	c.Tick(dspatch.Series, 0)
	c.Reset(0)
	if seen != 3 {
		t.Fatalf("Process saw %d input signals, want 3 after SetInputCount", seen)
	}
}

func TestComponent_SetOutputCount_preservesRefTotalsOnGrow(t *testing.T) {
	c := dspatch.NewComponent("src", nil, []string{"out"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})
	c.SetBufferCount(1)
	dst := dspatch.NewComponent("dst", []string{"in"}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})
	dst.ConnectInput(c, 0, 0)

	c.SetOutputCount(2, []string{"out", "extra"})
	if got := c.GetOutputCount(); got != 2 {
		t.Fatalf("GetOutputCount() = %d, want 2", got)
	}
	if got := c.RefTotal(0); got != 1 {
		t.Fatalf("RefTotal(0) = %d, want 1 preserved across the grow", got)
	}
	if got := c.RefTotal(1); got != 0 {
		t.Fatalf("RefTotal(1) = %d, want 0 for the new output", got)
	}
	if got := c.GetOutputName(0); got != "out" {
		t.Fatalf("GetOutputName(0) = %q, want %q", got, "out")
	}
	if got := c.GetOutputName(1); got != "extra" {
		t.Fatalf("GetOutputName(1) = %q, want %q", got, "extra")
	}
}

func TestComponent_InputOutputIndex(t *testing.T) {
	c := dspatch.NewComponent("mix", []string{"a", "b"}, []string{"sum"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})

	if i, ok := c.InputIndex("b"); !ok || i != 1 {
		t.Fatalf("InputIndex(%q) = (%d, %v), want (1, true)", "b", i, ok)
	}
	if _, ok := c.InputIndex("nope"); ok {
		t.Fatal("InputIndex should report false for an unknown name")
	}
	if i, ok := c.OutputIndex("sum"); !ok || i != 0 {
		t.Fatalf("OutputIndex(%q) = (%d, %v), want (0, true)", "sum", i, ok)
	}
	if _, ok := c.OutputIndex("nope"); ok {
		t.Fatal("OutputIndex should report false for an unknown name")
	}
}

func TestCircuit_Stats_tracksTicksAndFeedback(t *testing.T) {
	accum := dspatch.NewComponent("accum", []string{"in", "fb"}, []string{"sum"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {
			v, _ := dspatch.TypedBusGet[int](in, 0)
			fb, ok := dspatch.TypedBusGet[int](in, 1)
			if !ok {
				fb = 0
			}
			dspatch.TypedBusSet(out, 0, v+fb)
		})
	accum.ConnectInput(accum, 0, 1)

	c, err := dspatch.NewCircuit(accum)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		c.Tick(dspatch.Parallel)
	}

	stats := c.Stats()
	if stats.Components != 1 {
		t.Fatalf("Components = %d, want 1", stats.Components)
	}
	if stats.Buffers != 1 {
		t.Fatalf("Buffers = %d, want 1", stats.Buffers)
	}
	if stats.TicksExecuted != 3 {
		t.Fatalf("TicksExecuted = %d, want 3", stats.TicksExecuted)
	}
	if stats.FeedbackEdgesDetected == 0 {
		t.Fatal("expected at least one feedback edge detected across 3 ticks of a self-feedback component")
	}
	if got := accum.FeedbackEdgesDetected(); got == 0 {
		t.Fatal("expected Component.FeedbackEdgesDetected to be nonzero")
	}
	if stats.Latency != nil {
		t.Fatal("expected nil Latency with no Metrics attached")
	}
}

func TestCircuit_Stats_reportsLatencyWhenMetricsAttached(t *testing.T) {
	a := dspatch.NewComponent("a", nil, []string{"out"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) { dspatch.TypedBusSet(out, 0, 1) })
	c, err := dspatch.NewCircuit(a)
	if err != nil {
		t.Fatal(err)
	}
	c.SetMetrics(dspatch.NewMetrics(64))
	c.Tick(dspatch.Series)

	stats := c.Stats()
	if stats.Latency == nil {
		t.Fatal("expected non-nil Latency once a Metrics recorder has observed a tick")
	}
}

func TestCircuit_ConnectOutToIn_andRemoveComponent(t *testing.T) {
	src := dspatch.NewComponent("src", nil, []string{"out"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) { dspatch.TypedBusSet(out, 0, 7) })
	dst := dspatch.NewComponent("dst", []string{"in"}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})

	c, err := dspatch.NewCircuit(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !c.ConnectOutToIn(src, 0, dst, 0) {
		t.Fatal("expected ConnectOutToIn to succeed for valid ports")
	}
	if c.ConnectOutToIn(src, 9, dst, 0) {
		t.Fatal("expected ConnectOutToIn to fail for an out-of-range output")
	}

	c.Tick(dspatch.Series)

	if err := c.RemoveComponent(dst); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveComponent(dst); err != dspatch.ErrUnknownComponent {
		t.Fatalf("got %v, want ErrUnknownComponent for a component no longer owned by c", err)
	}
	// Removing dst must not break ticking the remaining circuit.
	c.Tick(dspatch.Series)
}

func TestCircuit_SeenTypes_tracksFlownTypes(t *testing.T) {
	src := dspatch.NewComponent("src", nil, []string{"out"}, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) { dspatch.TypedBusSet(out, 0, "hello") })
	sink := dspatch.NewComponent("sink", []string{"in"}, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})
	sink.ConnectInput(src, 0, 0)

	c, err := dspatch.NewCircuit(src, sink)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.SeenTypes(); len(got) != 0 {
		t.Fatalf("SeenTypes() before any tick = %v, want empty", got)
	}

	c.Tick(dspatch.Series)

	got := c.SeenTypes()
	if len(got) != 1 {
		t.Fatalf("SeenTypes() = %v, want exactly one type", got)
	}
	if got[0].Kind().String() != "string" {
		t.Fatalf("SeenTypes()[0] = %v, want string", got[0])
	}
}

func TestCircuit_TickContext_runsLikeTick(t *testing.T) {
	var ran bool
	c1 := dspatch.NewComponent("only", nil, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) { ran = true })
	c, err := dspatch.NewCircuit(c1)
	if err != nil {
		t.Fatal(err)
	}
	c.TickContext(context.Background(), dspatch.Series)
	if !ran {
		t.Fatal("expected TickContext to run the component's process function")
	}
}

func TestCircuit_StartAutoTickContext_stopsCleanly(t *testing.T) {
	c1 := dspatch.NewComponent("only", nil, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})
	c, err := dspatch.NewCircuit(c1)
	if err != nil {
		t.Fatal(err)
	}
	stop := c.StartAutoTickContext(context.Background(), dspatch.Parallel)
	stop()
}

func TestPool_ThreadPoolInterfaceGetters(t *testing.T) {
	pool := dspatch.NewPool(3, 2)
	defer pool.Close()
	if got := pool.BufferCount(); got != 3 {
		t.Fatalf("BufferCount() = %d, want 3", got)
	}
	if got := pool.ThreadsPerBuffer(); got != 2 {
		t.Fatalf("ThreadsPerBuffer() = %d, want 2", got)
	}
}

func TestCircuit_GetThreadsPerBuffer_reflectsSetBufferCount(t *testing.T) {
	c1 := dspatch.NewComponent("only", nil, nil, dspatch.OutOfOrder,
		func(in, out *dspatch.SignalBus) {})
	c, err := dspatch.NewCircuit(c1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetBufferCount(2, 4); err != nil {
		t.Fatal(err)
	}
	if got := c.GetThreadsPerBuffer(); got != 4 {
		t.Fatalf("GetThreadsPerBuffer() = %d, want 4", got)
	}
	if got := c.GetBufferCount(); got != 2 {
		t.Fatalf("GetBufferCount() = %d, want 2", got)
	}
}
