package dspatch

import "sync"

// JobToken identifies one job submitted to a ThreadPool, scoped to the
// buffer it was submitted for.
type JobToken uint64

// ThreadPool is the contract a shared worker pool must satisfy to back
// every Component in a Circuit (spec.md §4.7). A Component in pool mode
// dispatches its doTick(b) as a job on the pool instead of spinning up its
// own per-buffer worker; waiting on an upstream component's output
// translates to WaitForCompletion on that component's last submitted
// token for the same buffer.
type ThreadPool interface {
	BufferCount() int
	ThreadsPerBuffer() int
	AddJob(bufferNo int, job func()) JobToken
	WaitForCompletion(bufferNo int, token JobToken)
}

// Pool is the engine's default ThreadPool: N worker goroutines per buffer,
// each buffer with its own job queue, so that work for one buffer can
// never starve behind a backlog on another. Modeled on the chunked
// goroutine-per-shard worker pattern used by the teacher's own Circuit
// construction (hwsim.NewCircuit splits its updater list across
// GOMAXPROCS workers); here the shards are per-buffer queues instead of
// static slices of components.
type Pool struct {
	threadsPerBuffer int
	metrics          *Metrics

	mu      sync.Mutex
	buffers []*poolBuffer
}

type poolBuffer struct {
	pool     *Pool
	bufferNo int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []poolJob
	done    map[JobToken]chan struct{}
	nextTok JobToken
	closed  bool
}

type poolJob struct {
	token JobToken
	run   func()
}

// NewPool creates a Pool with bufferCount buffers and threadsPerBuffer
// worker goroutines dedicated to each buffer.
func NewPool(bufferCount, threadsPerBuffer int) *Pool {
	if bufferCount < 1 {
		bufferCount = 1
	}
	if threadsPerBuffer < 1 {
		threadsPerBuffer = 1
	}
	p := &Pool{threadsPerBuffer: threadsPerBuffer}
	p.buffers = make([]*poolBuffer, bufferCount)
	for b := range p.buffers {
		pb := &poolBuffer{pool: p, bufferNo: b, done: make(map[JobToken]chan struct{})}
		pb.cond = sync.NewCond(&pb.mu)
		p.buffers[b] = pb
		for t := 0; t < threadsPerBuffer; t++ {
			go pb.loop()
		}
	}
	return p
}

// SetMetrics attaches (or clears, with nil) a Metrics recorder. When set,
// the pool reports its per-buffer queue depth after every enqueue and
// dequeue.
func (p *Pool) SetMetrics(m *Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// BufferCount implements ThreadPool.
func (p *Pool) BufferCount() int { return len(p.buffers) }

// ThreadsPerBuffer implements ThreadPool.
func (p *Pool) ThreadsPerBuffer() int { return p.threadsPerBuffer }

// AddJob enqueues job for buffer bufferNo's worker team and returns a
// token that WaitForCompletion can use to block until it has run.
func (p *Pool) AddJob(bufferNo int, job func()) JobToken {
	pb := p.buffers[bufferNo]
	pb.mu.Lock()
	pb.nextTok++
	tok := pb.nextTok
	done := make(chan struct{})
	pb.done[tok] = done
	pb.queue = append(pb.queue, poolJob{token: tok, run: job})
	depth := len(pb.queue)
	pb.cond.Signal()
	pb.mu.Unlock()

	pb.reportQueueDepth(depth)
	return tok
}

func (pb *poolBuffer) reportQueueDepth(depth int) {
	pb.pool.mu.Lock()
	m := pb.pool.metrics
	pb.pool.mu.Unlock()
	m.SetPoolQueueDepth(pb.bufferNo, depth)
}

// WaitForCompletion blocks until the job identified by token has finished
// running.
func (p *Pool) WaitForCompletion(bufferNo int, token JobToken) {
	pb := p.buffers[bufferNo]
	pb.mu.Lock()
	done, ok := pb.done[token]
	pb.mu.Unlock()
	if !ok {
		return
	}
	<-done
}

func (pb *poolBuffer) loop() {
	for {
		pb.mu.Lock()
		for len(pb.queue) == 0 && !pb.closed {
			pb.cond.Wait()
		}
		if len(pb.queue) == 0 && pb.closed {
			pb.mu.Unlock()
			return
		}
		j := pb.queue[0]
		pb.queue = pb.queue[1:]
		depth := len(pb.queue)
		pb.mu.Unlock()

		pb.reportQueueDepth(depth)
		j.run()

		pb.mu.Lock()
		if done, ok := pb.done[j.token]; ok {
			close(done)
			delete(pb.done, j.token)
		}
		pb.mu.Unlock()
	}
}

// Close stops every worker goroutine in the pool once its queue drains.
func (p *Pool) Close() {
	for _, pb := range p.buffers {
		pb.mu.Lock()
		pb.closed = true
		pb.cond.Broadcast()
		pb.mu.Unlock()
	}
}
