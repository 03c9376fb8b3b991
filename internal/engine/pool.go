package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// PoolMetrics tracks task pool operational metrics. HighWatermark is the
// maximum number of tasks that were in flight simultaneously.
type PoolMetrics struct {
	Active        int64 `json:"active"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	Panics        int64 `json:"panics"`
	HighWatermark int64 `json:"high_watermark"`
}

// ErrPoolShutdown is returned when work is submitted to a shut-down pool.
var ErrPoolShutdown = errors.New("task pool is shut down")

// TaskPool is a bounded goroutine pool backing the coordinator's fan-out.
// The semaphore size is a hard concurrency cap, never exceeded.
type TaskPool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	metrics PoolMetrics
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
}

// NewTaskPool creates a pool with the given max concurrency.
func NewTaskPool(size int) *TaskPool {
	if size <= 0 {
		size = 1
	}
	return &TaskPool{
		sem:  make(chan struct{}, size),
		done: make(chan struct{}),
	}
}

// Submit enqueues work into the pool. It blocks while the pool is at
// capacity (backpressure) and respects context cancellation while waiting.
// Returns ErrPoolShutdown if the pool has been shut down.
func (p *TaskPool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolShutdown
	}
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
		// Slot acquired.
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolShutdown
	}

	// Re-check closed after acquiring the slot, in case Shutdown raced.
	// wg.Add(1) MUST be inside the lock to prevent a race with Shutdown's
	// wg.Wait().
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.sem // release slot
		return ErrPoolShutdown
	}
	p.wg.Add(1)
	active := atomic.AddInt64(&p.metrics.Active, 1)
	raiseWatermark(&p.metrics.HighWatermark, active)
	p.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.metrics.Panics, 1)
				atomic.AddInt64(&p.metrics.Failed, 1)
			}
			atomic.AddInt64(&p.metrics.Active, -1)
			<-p.sem // release slot
			p.wg.Done()
		}()

		if err := fn(ctx); err != nil {
			atomic.AddInt64(&p.metrics.Failed, 1)
		} else {
			atomic.AddInt64(&p.metrics.Completed, 1)
		}
	}()

	return nil
}

// Wait blocks until all submitted work completes.
func (p *TaskPool) Wait() {
	p.wg.Wait()
}

// Shutdown gracefully stops the pool. It prevents new submissions and waits
// for all active work to complete.
func (p *TaskPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Metrics returns a snapshot of the current pool metrics.
func (p *TaskPool) Metrics() PoolMetrics {
	return PoolMetrics{
		Active:        atomic.LoadInt64(&p.metrics.Active),
		Completed:     atomic.LoadInt64(&p.metrics.Completed),
		Failed:        atomic.LoadInt64(&p.metrics.Failed),
		Panics:        atomic.LoadInt64(&p.metrics.Panics),
		HighWatermark: atomic.LoadInt64(&p.metrics.HighWatermark),
	}
}

// raiseWatermark lifts the watermark to candidate if it is higher.
func raiseWatermark(mark *int64, candidate int64) {
	for {
		current := atomic.LoadInt64(mark)
		if candidate <= current {
			return
		}
		if atomic.CompareAndSwapInt64(mark, current, candidate) {
			return
		}
	}
}
