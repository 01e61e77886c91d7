package dspatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is a package-level global, the same pattern protograph's otel
// subscriber uses (otel.Tracer("protograph")): callers configure the
// global TracerProvider themselves (or leave the no-op default installed),
// and dspatch just asks otel for a tracer rather than owning SDK setup —
// this is a library, not a service, so it has no business dialing an
// exporter.
var tracer = otel.Tracer("github.com/mfkiwl/dspatch")

// TickContext runs one manual Tick inside an OpenTelemetry span named
// "dspatch.tick", so that a host application's trace of a larger request
// can show where circuit evaluation fit in. It is otherwise identical to
// Tick; Tick itself stays context-free since spec.md's Process signature
// carries no context and most manual-tick callers have no tracing need.
func (c *Circuit) TickContext(ctx context.Context, mode TickMode) {
	c.mu.Lock()
	n := len(c.components)
	bufferCount := c.bufferCount
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "dspatch.tick", trace.WithAttributes(
		attribute.Int("dspatch.component_count", n),
		attribute.Int("dspatch.buffer_count", bufferCount),
		attribute.Int("dspatch.mode", int(mode)),
	))
	defer span.End()
	_ = ctx

	c.Tick(mode)
	span.SetStatus(codes.Ok, "")
}

// StartAutoTickContext is StartAutoTick wrapped in a span covering the
// duration the CircuitWorker pool is up, so that "how long did the circuit
// run continuously" shows up as one trace. The returned func stops
// auto-tick and ends the span; cancelling ctx does neither.
func (c *Circuit) StartAutoTickContext(ctx context.Context, mode TickMode) func() {
	_, span := tracer.Start(ctx, "dspatch.auto_tick_run", trace.WithAttributes(
		attribute.Int("dspatch.mode", int(mode)),
	))
	c.StartAutoTick(mode)
	return func() {
		c.StopAutoTick()
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}
