package dspatch

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// TickMode selects how a Component drives its own Process call.
type TickMode int

const (
	// Series ticks synchronously: Tick recurses into upstream components
	// and runs Process on the calling goroutine before returning.
	Series TickMode = iota
	// Parallel dispatches Process asynchronously, either to the
	// component's own worker or to a shared ThreadPool, and returns as
	// soon as the dispatch is enqueued.
	Parallel
)

// ProcessOrder declares whether a Component's Process calls must be
// serialized across buffers in ring order (InOrder) or may run in any
// order / concurrently across buffers (OutOfOrder).
type ProcessOrder int

const (
	OutOfOrder ProcessOrder = iota
	InOrder
)

// ProcessFunc is the user-supplied body of a Component: it reads typed
// values from in by index and writes typed values to out by index. Not
// writing to an output index leaves it empty for this tick.
type ProcessFunc func(in, out *SignalBus)

// tickStatus is the per-buffer state of the Component.Tick state machine.
type tickStatus int32

const (
	notTicked tickStatus = iota
	tickStarted
	ticking
)

// componentBuffer holds everything that must exist once per buffer slot:
// the input/output buses, the tick-status/feedback bookkeeping, the
// per-output reference counters, the in-order release flag and the
// component's private worker (when not using a shared ThreadPool).
type componentBuffer struct {
	input  *SignalBus
	output *SignalBus

	statusMu sync.Mutex
	status   tickStatus
	feedback mapset.Set[int] // toInput indices marked as a feedback edge this tick

	refMu       []sync.Mutex // one per output, used only in ThreadPool mode with fan-out > 1
	refCounters []int

	release *releaseFlag

	workMu sync.Mutex
	worker *componentWorker // lazily created when in Parallel mode without a pool
	token  JobToken         // last token submitted to a ThreadPool for this buffer
	inPool bool             // true if the last dispatch went through a ThreadPool
}

// Component is one node in a Circuit: a user Process function plus the
// engine-owned bookkeeping (ports, wires, ref counts, per-buffer tick
// state) described in spec.md §3-4.
type Component struct {
	id   uuid.UUID
	name string

	processOrder ProcessOrder
	process      ProcessFunc

	mu          sync.Mutex // guards everything below except buffers' own fields
	inputNames  []string
	outputNames []string
	wires       []Wire // incoming wires (this component is always the target)
	refTotals   []int  // per-output static fan-out, shared across all buffers

	threadPool ThreadPool
	metrics    *Metrics
	registry   *typeRegistry

	feedbackEdgesDetected atomic.Uint64

	buffers []*componentBuffer
}

// NewComponent creates a Component with the given input/output port names
// and process order. process is called once per tick per buffer slot with
// a freshly populated input bus and an empty output bus. The component
// starts with zero buffer slots; call SetBufferCount (typically via
// Circuit.AddComponent/SetBufferCount) before ticking it.
func NewComponent(name string, inputs, outputs []string, order ProcessOrder, process ProcessFunc) *Component {
	return &Component{
		id:           uuid.New(),
		name:         name,
		processOrder: order,
		process:      process,
		inputNames:   append([]string(nil), inputs...),
		outputNames:  append([]string(nil), outputs...),
		refTotals:    make([]int, len(outputs)),
	}
}

// ID returns a stable identity for the component, independent of its
// position in a Circuit's component list, generated once by NewComponent.
func (c *Component) ID() uuid.UUID { return c.id }

// Name returns the component's human-readable name.
func (c *Component) Name() string { return c.name }

// GetInputCount returns the number of input ports.
func (c *Component) GetInputCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inputNames)
}

// GetOutputCount returns the number of output ports.
func (c *Component) GetOutputCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outputNames)
}

// GetInputName returns the name of input port i.
func (c *Component) GetInputName(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputNames[i]
}

// GetOutputName returns the name of output port i.
func (c *Component) GetOutputName(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputNames[i]
}

// InputIndex returns the index of the input port named name, and false if
// no input port has that name. A supplement to spec.md §6's
// GetInputName(i)->string, useful for dflowlib-style components that wire
// by name instead of remembering port positions.
func (c *Component) InputIndex(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.inputNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// OutputIndex returns the index of the output port named name, and false
// if no output port has that name.
func (c *Component) OutputIndex(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.outputNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// GetBufferCount returns the number of buffer slots currently allocated.
func (c *Component) GetBufferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// ProcessOrderValue returns the component's declared process order.
func (c *Component) ProcessOrderValue() ProcessOrder {
	return c.processOrder
}

// FeedbackEdgesDetected returns the number of times one of this
// component's incoming wires was marked as a feedback edge (its upstream
// component's Tick returned false because that component was still pulling
// its own inputs), across every buffer and tick since the component was
// created. Tracked independently of Metrics so Circuit.Stats() reports it
// even when no Metrics is attached.
func (c *Component) FeedbackEdgesDetected() uint64 {
	return c.feedbackEdgesDetected.Load()
}

// SetThreadPool installs (or clears, with nil) a shared ThreadPool. When
// set, Tick in Parallel mode dispatches through the pool instead of the
// component's own per-buffer worker.
func (c *Component) SetThreadPool(pool ThreadPool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadPool = pool
}

// SetMetrics attaches (or clears, with nil) a Metrics recorder. Normally
// set indirectly via Circuit.SetMetrics/AddComponent rather than called
// directly.
func (c *Component) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

func (c *Component) getMetrics() *Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// SetTypeRegistry installs (or clears, with nil) the Circuit-level type
// registry. Normally set indirectly via Circuit.AddComponent rather than
// called directly.
func (c *Component) SetTypeRegistry(r *typeRegistry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry = r
}

func (c *Component) getTypeRegistry() *typeRegistry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}

// SetBufferCount resizes the component to exactly n buffer slots, each
// sized consistently with the current input/output port counts. Callers
// must ensure no tick is in flight on this component when calling this
// (Circuit.SetBufferCount stops its CircuitWorkers first).
func (c *Component) SetBufferCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBufferCountLocked(n)
}

func (c *Component) setBufferCountLocked(n int) {
	for _, b := range c.buffers {
		if b.worker != nil {
			b.worker.Stop()
		}
	}
	bufs := make([]*componentBuffer, n)
	for i := range bufs {
		cb := &componentBuffer{
			input:       NewSignalBus(len(c.inputNames)),
			output:      NewSignalBus(len(c.outputNames)),
			feedback:    mapset.NewThreadUnsafeSet[int](),
			refCounters: make([]int, len(c.outputNames)),
			refMu:       make([]sync.Mutex, len(c.outputNames)),
			release:     newReleaseFlag(i == 0),
		}
		bufs[i] = cb
	}
	c.buffers = bufs
}

// SetInputCount resizes the input port list to n ports named by names
// (missing or empty entries default to a positional name). Existing wires targeting
// out-of-range inputs are not automatically disconnected; callers resize
// before wiring. See spec.md §4.4.
func (c *Component) SetInputCount(n int, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputNames = resizeNames(n, names)
	for _, b := range c.buffers {
		b.input.resize(n)
	}
}

// SetOutputCount resizes the output port list to n ports named by names.
func (c *Component) SetOutputCount(n int, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputNames = resizeNames(n, names)
	old := c.refTotals
	c.refTotals = make([]int, n)
	copy(c.refTotals, old)
	for _, b := range c.buffers {
		b.output.resize(n)
		oldRC := b.refCounters
		b.refCounters = make([]int, n)
		copy(b.refCounters, oldRC)
		b.refMu = make([]sync.Mutex, n)
	}
}

func resizeNames(n int, names []string) []string {
	out := make([]string, n)
	for i := range out {
		if i < len(names) && names[i] != "" {
			out[i] = names[i]
		} else {
			out[i] = "port" + strconv.Itoa(i)
		}
	}
	return out
}

// ConnectInput wires from's fromOutput output to this component's toInput
// input, replacing any wire already targeting toInput. It returns false
// (with no state change) if either port index is out of range.
func (c *Component) ConnectInput(from *Component, fromOutput, toInput int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if toInput < 0 || toInput >= len(c.inputNames) {
		return false
	}
	outCount := len(c.outputNames)
	if from != c {
		outCount = from.GetOutputCount()
	}
	if fromOutput < 0 || fromOutput >= outCount {
		return false
	}
	next := Wire{From: from, FromOutput: fromOutput, ToInput: toInput}
	if i := c.wireIndexLocked(toInput); i >= 0 {
		old := c.wires[i]
		if old.equal(next) {
			return true
		}
		if old.From == c {
			c.refTotals[old.FromOutput]--
		} else {
			old.From.decRef(old.FromOutput)
		}
		c.wires = append(c.wires[:i], c.wires[i+1:]...)
	}
	c.wires = append(c.wires, next)
	if from == c {
		c.refTotals[fromOutput]++
	} else {
		from.incRef(fromOutput)
	}
	return true
}

// DisconnectInput removes the wire (if any) targeting input i, decrementing
// its source output's ref_total.
func (c *Component) DisconnectInput(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.wireIndexLocked(i)
	if idx < 0 {
		return
	}
	w := c.wires[idx]
	if w.From == c {
		c.refTotals[w.FromOutput]--
	} else {
		w.From.decRef(w.FromOutput)
	}
	c.wires = append(c.wires[:idx], c.wires[idx+1:]...)
}

// DisconnectComponent removes every wire sourced from "from", wherever it
// targets on this component.
func (c *Component) DisconnectComponent(from *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.wires[:0]
	for _, w := range c.wires {
		if w.From == from {
			if from == c {
				c.refTotals[w.FromOutput]--
			} else {
				from.decRef(w.FromOutput)
			}
			continue
		}
		kept = append(kept, w)
	}
	c.wires = kept
}

// DisconnectAllInputs removes every incoming wire. Called on teardown by
// Circuit.RemoveComponent to break the strong-reference cycle a feedback
// wire would otherwise create.
func (c *Component) DisconnectAllInputs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.wires {
		if w.From == c {
			c.refTotals[w.FromOutput]--
		} else {
			w.From.decRef(w.FromOutput)
		}
	}
	c.wires = nil
}

func (c *Component) wireIndexLocked(toInput int) int {
	for i, w := range c.wires {
		if w.ToInput == toInput {
			return i
		}
	}
	return -1
}

func (c *Component) snapshotWires() []Wire {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Wire(nil), c.wires...)
}

// incRef/decRef mutate the static fan-out counter of one output. Callers
// hold their own mu first: the target component's mu, then the source's.
// A wire from a component to itself adjusts refTotals directly instead,
// since that mu is already held.
func (c *Component) incRef(output int) {
	c.mu.Lock()
	c.refTotals[output]++
	c.mu.Unlock()
}

func (c *Component) decRef(output int) {
	c.mu.Lock()
	c.refTotals[output]--
	c.mu.Unlock()
}

func (c *Component) refTotal(output int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refTotals[output]
}

// RefTotal returns the static fan-out of output: the number of wires
// currently sourced from it. Exposed for diagnostics and for tests that
// check the "ref_total equals wire count" invariant directly.
func (c *Component) RefTotal(output int) int {
	return c.refTotal(output)
}

func (c *Component) usesPool() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadPool != nil
}

func (c *Component) pool() ThreadPool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadPool
}

func (c *Component) bufferAt(b int) *componentBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[b]
}

func (c *Component) bufferCountLocked() int {
	return len(c.buffers)
}

// Tick implements the per-buffer tick state machine described in
// spec.md §4.1. It returns false if re-entering a component that is still
// pulling its own inputs for buffer b — the signature of a feedback edge —
// and true otherwise (including when the component was already done or in
// progress for this tick).
func (c *Component) Tick(mode TickMode, b int) bool {
	cb := c.bufferAt(b)

	cb.statusMu.Lock()
	switch cb.status {
	case tickStarted:
		cb.statusMu.Unlock()
		return false
	case ticking:
		cb.statusMu.Unlock()
		return true
	}
	cb.status = tickStarted
	cb.statusMu.Unlock()

	if mode == Parallel {
		for _, w := range c.snapshotWires() {
			if !w.From.Tick(mode, b) {
				cb.feedback.Add(w.ToInput)
				c.feedbackEdgesDetected.Add(1)
				c.getMetrics().RecordFeedbackEdge(c.name)
			}
		}
		cb.statusMu.Lock()
		cb.status = ticking
		cb.statusMu.Unlock()
		c.dispatch(b)
		return true
	}

	cb.statusMu.Lock()
	cb.status = ticking
	cb.statusMu.Unlock()
	c.doTick(mode, b)
	return true
}

// dispatch submits doTick(Parallel, b) to run asynchronously, either on a
// shared ThreadPool or on the component's own per-buffer worker.
func (c *Component) dispatch(b int) {
	cb := c.bufferAt(b)
	job := func() { c.doTick(Parallel, b) }

	cb.workMu.Lock()
	defer cb.workMu.Unlock()
	if pool := c.pool(); pool != nil {
		cb.inPool = true
		cb.token = pool.AddJob(b, job)
		return
	}
	cb.inPool = false
	if cb.worker == nil {
		cb.worker = newComponentWorker()
	}
	cb.worker.Dispatch(job)
}

// waitBuffer blocks until this component's dispatched work for buffer b
// (if any) has finished running Process.
func (c *Component) waitBuffer(b int) {
	cb := c.bufferAt(b)
	cb.workMu.Lock()
	pool := c.pool()
	inPool, token, worker := cb.inPool, cb.token, cb.worker
	cb.workMu.Unlock()
	if inPool && pool != nil {
		pool.WaitForCompletion(b, token)
		return
	}
	if worker != nil {
		worker.Wait()
	}
}

// doTick is the core of one tick for buffer b: pull inputs, clear the
// output bus, then run Process (with in-order release serialization if
// applicable). See spec.md §4.1.
func (c *Component) doTick(mode TickMode, b int) {
	cb := c.bufferAt(b)

	for _, w := range c.snapshotWires() {
		if mode == Parallel {
			if cb.feedback.Contains(w.ToInput) {
				cb.feedback.Remove(w.ToInput)
			} else {
				w.From.waitBuffer(b)
			}
		} else {
			w.From.Tick(mode, b)
		}
		w.From.getOutput(b, w.FromOutput, w.ToInput, cb.input)
	}

	cb.output.ClearAll()

	bufferCount := c.GetBufferCount()
	m := c.getMetrics()
	runProcess := func() {
		start := time.Now()
		c.process(cb.input, cb.output)
		m.RecordTick(c.name, time.Since(start))
	}
	if c.processOrder == InOrder && bufferCount > 1 {
		cb.release.WaitForRelease()
		runProcess()
		c.releaseNext(b, bufferCount)
	} else {
		runProcess()
	}
}

// releaseNext hands the in-order release token to the next buffer in ring
// order, per spec.md §4.3.
func (c *Component) releaseNext(b, bufferCount int) {
	next := (b + 1) % bufferCount
	c.bufferAt(next).release.Release()
}

// getOutput implements the per-output signal handoff protocol (spec.md
// §4.2): the final consumer of a fanned-out output moves (swaps) the
// value, every earlier consumer copies it.
func (c *Component) getOutput(b, fromOutput, toInput int, target *SignalBus) {
	cb := c.bufferAt(b)
	if !cb.output.HasValue(fromOutput) {
		return
	}
	c.getTypeRegistry().record(cb.output.Get(fromOutput))

	total := c.refTotal(fromOutput)
	useLock := total > 1 && c.usesPool()

	var counter int
	if useLock {
		cb.refMu[fromOutput].Lock()
		cb.refCounters[fromOutput]++
		counter = cb.refCounters[fromOutput]
		if counter == total {
			cb.refCounters[fromOutput] = 0
		}
		cb.refMu[fromOutput].Unlock()
	} else {
		cb.refCounters[fromOutput]++
		counter = cb.refCounters[fromOutput]
		if counter == total {
			cb.refCounters[fromOutput] = 0
		}
	}

	if counter != total {
		target.SetFrom(toInput, cb.output.Get(fromOutput))
		return
	}
	target.MoveFrom(toInput, cb.output.Get(fromOutput))
}

// Reset completes the tick for buffer b: it waits for any in-flight worker
// to finish, clears the input bus, and rearms the tick-status machine for
// the next tick. The output bus is deliberately left untouched — this
// tick's doTick cleared it after pulling inputs and before Process wrote
// the new outputs, which are preserved for feedback readers until the next
// tick's doTick clears it again.
func (c *Component) Reset(b int) {
	cb := c.bufferAt(b)
	c.waitBuffer(b)
	cb.input.ClearAll()
	cb.statusMu.Lock()
	cb.status = notTicked
	cb.statusMu.Unlock()
}

// close stops the component's per-buffer workers. Called by
// Circuit.RemoveComponent; a buffer-count change stops the workers in
// setBufferCountLocked instead.
func (c *Component) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buffers {
		if b.worker != nil {
			b.worker.Stop()
		}
	}
}

