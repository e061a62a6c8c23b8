package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs background jobs on a fixed set of goroutines.
//
// Jobs are queued on a shared buffered channel and run to completion; there
// is no cancellation. The render goroutine never runs pool work itself, so a
// slow job never delays frame submission.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// queue holds submitted jobs.
	queue chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used (capped at 4, since
// atlas builds are few and large rather than many and small).
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = min(runtime.GOMAXPROCS(0), 4)
	}

	p := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), workers*4),
		done:    make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}

	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			p.drain()
			return
		case work := <-p.queue:
			p.run(work)
		}
	}
}

func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	work()
}

// drain executes whatever is still queued at shutdown.
func (p *WorkerPool) drain() {
	for {
		select {
		case work := <-p.queue:
			p.run(work)
		default:
			return
		}
	}
}

// Submit queues fn for execution and reports whether it was accepted.
// It returns false if the pool is closed.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}

	select {
	case p.queue <- fn:
		return true
	case <-p.done:
		return false
	}
}

// Close stops accepting work, runs queued jobs to completion and stops
// all workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}
