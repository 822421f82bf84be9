// Package workerpool provides a bounded goroutine pool with a bounded
// task queue. Submitting blocks once the queue is full, which is what
// gives a producer backpressure, and a cancelled context releases a
// blocked submitter. Based on patterns from cloudwego/netpoll gopool and
// panjf2000/ants.
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("workerpool: pool is closed")

// Option configures a Pool.
type Option func(*Pool)

// WithQueueDepth sets the number of tasks that may wait for a worker.
// The default is four per worker.
func WithQueueDepth(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.depth = n
		}
	}
}

// WithPanicHandler registers fn to be called with the recovered value when
// a task panics. The worker keeps running either way.
func WithPanicHandler(fn func(recovered any)) Option {
	return func(p *Pool) {
		p.onPanic = fn
	}
}

// Pool manages a fixed set of worker goroutines fed from one queue.
type Pool struct {
	workers int32
	depth   int
	onPanic func(any)

	tasks chan func()

	// mu guards the closed flag against concurrent sends on tasks.
	mu     sync.RWMutex
	closed bool

	running atomic.Int32
	active  atomic.Int32
	done    atomic.Int64
	panics  atomic.Int64

	wg sync.WaitGroup
}

// New creates a pool with the given number of workers. Workers are started
// lazily as tasks arrive.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: int32(workers),
		depth:   workers * 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = make(chan func(), p.depth)
	return p
}

// Submit queues task, blocking while the queue is full. It returns
// ctx.Err() if ctx is cancelled first and ErrClosed once the pool is
// closed.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		running := p.running.Load()
		if running >= p.workers {
			break
		}
		if p.running.CompareAndSwap(running, running+1) {
			p.wg.Add(1)
			go p.worker()
			break
		}
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer func() {
		p.running.Add(-1)
		p.wg.Done()
	}()
	for task := range p.tasks {
		if task != nil {
			p.run(task)
		}
	}
}

func (p *Pool) run(task func()) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.done.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
	}()
	task()
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Running returns the current number of worker goroutines.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Active returns the number of tasks currently executing.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Cap returns the worker capacity.
func (p *Pool) Cap() int { return int(p.workers) }

// Waiting returns the number of queued tasks.
func (p *Pool) Waiting() int { return len(p.tasks) }

// Completed returns the number of tasks that have finished, including
// those that panicked.
func (p *Pool) Completed() int64 { return p.done.Load() }

// Panics returns the number of tasks that panicked.
func (p *Pool) Panics() int64 { return p.panics.Load() }
