package dspatch

import (
	"reflect"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jamiealquiza/tachymeter"
)

// Circuit owns a component list, an optional shared ThreadPool, and the
// public control surface for ticking the graph either manually or via a
// pool of CircuitWorker goroutines that pipeline successive ticks.
type Circuit struct {
	mu sync.Mutex

	components []*Component
	set        mapset.Set[*Component]

	bufferCount      int
	threadsPerBuffer int
	mode             TickMode
	pool             ThreadPool
	ownsPool         bool

	auto *autoTickState

	metrics       *Metrics
	ticksExecuted atomic.Uint64
	registry      *typeRegistry
}

// NewCircuit builds a Circuit containing the given components, wired with
// one buffer slot and Series tick mode by default. It returns
// ErrEmptyCircuit if called with no components, mirroring the teacher's
// own NewCircuit(workers, stepsPerCycle, parts...) refusing an empty part
// list.
func NewCircuit(components ...*Component) (*Circuit, error) {
	if len(components) == 0 {
		return nil, ErrEmptyCircuit
	}
	c := &Circuit{
		bufferCount:      1,
		threadsPerBuffer: 1,
		mode:             Series,
		set:              mapset.NewThreadUnsafeSet[*Component](),
		registry:         newTypeRegistry(),
	}
	for _, comp := range components {
		c.AddComponent(comp)
	}
	return c, nil
}

// AddComponent appends comp to the circuit's component list (a no-op if it
// is already present) and sizes it to the circuit's current buffer count.
// The returned value is comp itself: in this engine a Component pointer is
// already a stable handle, so no separate index-based handle is needed.
func (c *Circuit) AddComponent(comp *Component) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set.Contains(comp) {
		return comp
	}
	c.set.Add(comp)
	c.components = append(c.components, comp)
	comp.SetBufferCount(c.bufferCount)
	if c.pool != nil {
		comp.SetThreadPool(c.pool)
	}
	if c.metrics != nil {
		comp.SetMetrics(c.metrics)
	}
	comp.SetTypeRegistry(c.registry)
	return comp
}

// SeenTypes returns every distinct concrete Go type that has flowed across
// a wire in this circuit so far, per spec.md §9's type-identity requirement
// for a dynamically typed signal cell.
func (c *Circuit) SeenTypes() []reflect.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.seenTypes()
}

// RemoveComponent disconnects comp's inputs, severs any wire in the
// remaining components that was sourced from comp, and removes it from the
// circuit's component list. It returns ErrUnknownComponent if comp is not
// owned by this circuit.
func (c *Circuit) RemoveComponent(comp *Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set.Contains(comp) {
		return ErrUnknownComponent
	}
	comp.DisconnectAllInputs()
	c.disconnectComponentLocked(comp)
	c.set.Remove(comp)
	for i, other := range c.components {
		if other == comp {
			c.components = append(c.components[:i], c.components[i+1:]...)
			break
		}
	}
	comp.close()
	return nil
}

// DisconnectComponent severs every wire sourced from comp in every other
// component in the circuit, without removing comp from the circuit. It
// returns ErrUnknownComponent if comp is not owned by this circuit.
func (c *Circuit) DisconnectComponent(comp *Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set.Contains(comp) {
		return ErrUnknownComponent
	}
	c.disconnectComponentLocked(comp)
	return nil
}

func (c *Circuit) disconnectComponentLocked(comp *Component) {
	for _, other := range c.components {
		if other != comp {
			other.DisconnectComponent(comp)
		}
	}
}

// ConnectOutToIn wires from's fromOut output to to's toIn input, returning
// false if either port index is out of range. It is a thin delegate to
// to.ConnectInput, kept on Circuit as the handle-based counterpart spec.md
// §6 describes.
func (c *Circuit) ConnectOutToIn(from *Component, fromOut int, to *Component, toIn int) bool {
	return to.ConnectInput(from, fromOut, toIn)
}

// GetBufferCount returns the number of buffer slots the circuit currently
// runs.
func (c *Circuit) GetBufferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferCount
}

// GetThreadsPerBuffer returns the number of CircuitWorker threads assigned
// per buffer for auto-tick.
func (c *Circuit) GetThreadsPerBuffer() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadsPerBuffer
}

// SetBufferCount resizes the circuit (and every component in it) to
// bufferCount buffer slots, with an optional threads-per-buffer count for
// auto-tick (default 1). If auto-tick is running, its CircuitWorker pool
// is stopped and restarted around the resize, per spec.md §7: changing the
// buffer count mid-run is synchronized internally and never surfaced as an
// error.
func (c *Circuit) SetBufferCount(bufferCount int, threadsPerBuffer ...int) error {
	t := 1
	if len(threadsPerBuffer) > 0 {
		t = threadsPerBuffer[0]
	}
	if bufferCount < 1 || t < 1 {
		return ErrBufferCount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wasAuto := c.auto != nil
	var mode TickMode
	if wasAuto {
		mode = c.auto.mode
		c.stopAutoLocked()
	}

	c.bufferCount = bufferCount
	c.threadsPerBuffer = t
	for _, comp := range c.components {
		comp.SetBufferCount(bufferCount)
	}

	if wasAuto {
		c.startAutoLocked(mode)
	}
	return nil
}

// SetThreadPool installs (or clears, with nil) a shared ThreadPool used by
// every component in the circuit. Like SetBufferCount, this is
// synchronized internally around any running auto-tick.
func (c *Circuit) SetThreadPool(pool ThreadPool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasAuto := c.auto != nil
	var mode TickMode
	if wasAuto {
		mode = c.auto.mode
		c.stopAutoLocked()
	}

	c.pool = pool
	for _, comp := range c.components {
		comp.SetThreadPool(pool)
	}
	if p, ok := pool.(*Pool); ok {
		p.SetMetrics(c.metrics)
	}

	if wasAuto {
		c.startAutoLocked(mode)
	}
}

// Tick runs one manual tick of the circuit in the given mode: every
// component is ticked for every buffer (in ascending buffer order), then
// reset for every buffer. With one buffer this degenerates to a single
// synchronous pass; with Series mode and any number of buffers, Process
// calls happen synchronously on the calling goroutine. This path never
// touches the CircuitWorker pool — that pipelining machinery exists only
// for StartAutoTick.
func (c *Circuit) Tick(mode TickMode) {
	c.mu.Lock()
	comps := append([]*Component(nil), c.components...)
	bufferCount := c.bufferCount
	c.mu.Unlock()

	for b := 0; b < bufferCount; b++ {
		for _, comp := range comps {
			comp.Tick(mode, b)
		}
	}
	for b := 0; b < bufferCount; b++ {
		for _, comp := range comps {
			comp.Reset(b)
		}
	}
	c.ticksExecuted.Add(uint64(bufferCount))
}

// SetMetrics attaches a Metrics recorder (see metrics.go) that every
// component uses to record Process latency and feedback-edge counts, on
// manual and auto-tick alike. Pass nil to detach.
func (c *Circuit) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	for _, comp := range c.components {
		comp.SetMetrics(m)
	}
	if p, ok := c.pool.(*Pool); ok {
		p.SetMetrics(m)
	}
}

// CircuitStats is a point-in-time diagnostic snapshot returned by
// Circuit.Stats(): component/buffer topology plus cumulative counters,
// independent of whether a Metrics recorder is attached.
type CircuitStats struct {
	Components            int
	Buffers               int
	TicksExecuted         uint64
	FeedbackEdgesDetected uint64
	// Latency is nil unless a Metrics recorder has been attached via
	// Circuit.SetMetrics; its values stay zero until a tick is recorded.
	Latency *tachymeter.Metrics
}

// Stats returns a CircuitStats snapshot: component and buffer counts,
// cumulative ticks executed and feedback edges detected across every
// component, and (when a Metrics recorder is attached) the tachymeter
// latency percentiles from metrics.go's Stats. This is the production
// debuggability surface a concurrent pipelined engine needs that a purely
// combinational boolean circuit never did.
func (c *Circuit) Stats() CircuitStats {
	c.mu.Lock()
	comps := append([]*Component(nil), c.components...)
	bufferCount := c.bufferCount
	metrics := c.metrics
	c.mu.Unlock()

	var feedback uint64
	for _, comp := range comps {
		feedback += comp.FeedbackEdgesDetected()
	}

	return CircuitStats{
		Components:            len(comps),
		Buffers:               bufferCount,
		TicksExecuted:         c.ticksExecuted.Load(),
		FeedbackEdgesDetected: feedback,
		Latency:               metrics.Stats(),
	}
}

// componentsSnapshot returns a defensive copy of the current component
// list, used by the auto-tick CircuitWorkers to partition work without
// holding the circuit lock for the duration of a tick.
func (c *Circuit) componentsSnapshot() []*Component {
	return append([]*Component(nil), c.components...)
}
