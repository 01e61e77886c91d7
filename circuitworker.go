package dspatch

import "sync"

// cyclicBarrier is a reusable rendezvous point for a fixed number of
// goroutines: Wait blocks until every participant has called it, then
// releases them all together and resets for the next round. It is the
// concrete implementation of the sync/resume handshake spec.md §4.6
// describes in terms of per-thread got_sync/got_resume flags: arriving at
// the barrier is Sync(), the barrier releasing everyone at once is
// SyncAndResume(). The two are behaviorally equivalent; the barrier form
// avoids threading a tick-mode value through N per-thread structs.
type cyclicBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
}

func newCyclicBarrier(n int) *cyclicBarrier {
	b := &cyclicBarrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks the calling goroutine until n goroutines total have called
// Wait on this barrier, then releases all of them.
func (b *cyclicBarrier) Wait() {
	b.mu.Lock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
	} else {
		for b.generation == gen {
			b.cond.Wait()
		}
	}
	b.mu.Unlock()
}

// autoTickState is the live state of one StartAutoTick run: bufferCount *
// threadsPerBuffer CircuitWorker goroutines, each assigned one buffer
// number and a disjoint chunk of the component list, synchronized by a
// tick-phase/reset-phase barrier and gated by a separate pause mechanism
// so that Pause/Resume can be used to safely reconfigure the circuit
// mid-run (spec.md §8 scenario 5).
type autoTickState struct {
	mode        TickMode
	n           int
	bufferCount int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	barrier *cyclicBarrier

	pauseMu   sync.Mutex
	pauseCond *sync.Cond
	paused    bool
	quiescent int

	// parkThisRound is the pause decision for the current round, read from
	// paused by a single worker so that every worker parks or none does.
	parkThisRound bool
}

// partitionComponents splits comps into exactly n chunks (possibly empty),
// as evenly as possible. This generalizes the chunked goroutine-per-shard
// split the teacher's NewCircuit uses to divide its updater list across
// GOMAXPROCS workers, but always produces exactly n chunks — one per
// CircuitWorker thread — so that every started goroutine is a barrier
// participant and the barrier's count never stalls short.
func partitionComponents(comps []*Component, n int) [][]*Component {
	chunks := make([][]*Component, n)
	if n <= 0 {
		return chunks
	}
	size := len(comps) / n
	rem := len(comps) % n
	idx := 0
	for i := 0; i < n; i++ {
		sz := size
		if i < rem {
			sz++
		}
		chunks[i] = comps[idx : idx+sz]
		idx += sz
	}
	return chunks
}

// startAutoLocked spawns the CircuitWorker pool. c.mu must be held.
func (c *Circuit) startAutoLocked(mode TickMode) {
	n := c.bufferCount * c.threadsPerBuffer
	a := &autoTickState{
		mode:        mode,
		n:           n,
		bufferCount: c.bufferCount,
		stopCh:      make(chan struct{}),
		barrier:     newCyclicBarrier(n),
	}
	a.pauseCond = sync.NewCond(&a.pauseMu)
	c.auto = a

	comps := c.componentsSnapshot()
	first := true
	for b := 0; b < c.bufferCount; b++ {
		bufferNo := b
		for _, chunk := range partitionComponents(comps, c.threadsPerBuffer) {
			chunk := chunk
			a.wg.Add(1)
			go c.runCircuitWorker(a, bufferNo, chunk, first)
			first = false
		}
	}
}

// stopAutoLocked stops and joins every CircuitWorker thread. c.mu must be
// held. It is a no-op if auto-tick is not running.
//
// The stop flag is made visible only once every worker is confirmed parked
// at the same quiescent point (the same Sync() every worker reaches between
// a reset-phase and the next tick-phase that PauseAutoTick uses) — mirroring
// original_source/src/internal/CircuitThread.cpp's Stop(), which calls
// Sync() (wait for every thread's gotSync), then sets stop on every thread
// while they're all parked, then SyncAndResume(). Closing stopCh without
// this rendezvous would race: a worker that observes the close before
// committing to a round's first barrier.Wait() returns without ever calling
// it, while a sibling that already committed blocks on that barrier
// forever, since its fixed participant count can no longer be reached.
func (c *Circuit) stopAutoLocked() {
	a := c.auto
	if a == nil {
		return
	}
	a.pauseMu.Lock()
	if !a.paused {
		a.paused = true
		for a.quiescent < a.n {
			a.pauseCond.Wait()
		}
	}
	close(a.stopCh)
	a.paused = false
	a.pauseCond.Broadcast()
	a.pauseMu.Unlock()

	a.wg.Wait()
	c.auto = nil
}

// runCircuitWorker is one CircuitWorker thread: it repeatedly ticks, then
// resets, its chunk of components for bufferNo, synchronizing with its
// siblings at a barrier after each phase (spec.md §4.6). stop is observed
// only at the top of the loop, right after waitIfPaused's quiescent point —
// the same point stopAutoLocked waits for before ever closing a.stopCh, so
// by the time a worker can see it closed, no worker has committed to
// another barrier round. countsRounds is true for exactly one CircuitWorker
// goroutine in the whole pool: it adds bufferCount to Circuit.Stats()'s
// ticksExecuted once per barrier round (one tick per buffer) rather than
// once per worker thread, and it alone reads the pause flag for the round,
// between the second and a third barrier, so that all workers agree on
// whether to park.
func (c *Circuit) runCircuitWorker(a *autoTickState, bufferNo int, chunk []*Component, countsRounds bool) {
	defer a.wg.Done()
	for {
		if stopped(a.stopCh) {
			return
		}
		for _, comp := range chunk {
			comp.Tick(a.mode, bufferNo)
		}

		a.barrier.Wait()

		for _, comp := range chunk {
			comp.Reset(bufferNo)
		}
		if countsRounds {
			c.ticksExecuted.Add(uint64(a.bufferCount))
		}

		a.barrier.Wait()
		if countsRounds {
			a.pauseMu.Lock()
			a.parkThisRound = a.paused
			a.pauseMu.Unlock()
		}
		a.barrier.Wait()
		if a.parkThisRound {
			a.waitIfPaused()
		}
	}
}

func (a *autoTickState) waitIfPaused() {
	a.pauseMu.Lock()
	if a.paused {
		a.quiescent++
		a.pauseCond.Broadcast()
		for a.paused {
			a.pauseCond.Wait()
		}
		a.quiescent--
	}
	a.pauseMu.Unlock()
}

func stopped(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// StartAutoTick starts driving the circuit continuously from a pool of
// CircuitWorker threads (bufferCount * threadsPerBuffer of them), ticking
// and resetting every component in list order, pipelined across buffers.
// It is a no-op if auto-tick is already running.
func (c *Circuit) StartAutoTick(mode TickMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auto != nil {
		return
	}
	c.startAutoLocked(mode)
}

// StopAutoTick stops and joins every CircuitWorker thread. It is a no-op
// if auto-tick is not running.
func (c *Circuit) StopAutoTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAutoLocked()
}

// PauseAutoTick blocks until every CircuitWorker thread has parked at a
// quiescent point (between a reset-phase and the next tick-phase, so no
// component is mid-Process anywhere), making it safe for the caller to
// perform structural changes (rewiring, adding/removing components).
func (c *Circuit) PauseAutoTick() error {
	c.mu.Lock()
	a := c.auto
	c.mu.Unlock()
	if a == nil {
		return ErrNotAutoTicking
	}
	a.pauseMu.Lock()
	defer a.pauseMu.Unlock()
	if a.paused {
		return ErrAlreadyPaused
	}
	a.paused = true
	for a.quiescent < a.n {
		a.pauseCond.Wait()
	}
	return nil
}

// ResumeAutoTick releases CircuitWorker threads parked by PauseAutoTick.
func (c *Circuit) ResumeAutoTick() error {
	c.mu.Lock()
	a := c.auto
	c.mu.Unlock()
	if a == nil {
		return ErrNotAutoTicking
	}
	a.pauseMu.Lock()
	defer a.pauseMu.Unlock()
	if !a.paused {
		return ErrNotPaused
	}
	a.paused = false
	a.pauseCond.Broadcast()
	return nil
}
