package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolShutdown is returned when a task is submitted to a shut-down pool.
var ErrPoolShutdown = errors.New("worker pool is shut down")

// PoolMetrics is a snapshot of the pool's dispatch counters. Dispatched
// counts every accepted submission; Recovered counts task functions that
// panicked and were contained by the pool.
type PoolMetrics struct {
	InFlight   int64 `json:"in_flight"`
	Dispatched int64 `json:"dispatched"`
	Completed  int64 `json:"completed"`
	Recovered  int64 `json:"recovered"`
}

// WorkerPool bounds how many parallel task dispatches run at once. A
// buffered channel hands out slots; Submit blocks for one (backpressure)
// and honors cancellation and shutdown while waiting.
type WorkerPool struct {
	slots chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	inFlight   atomic.Int64
	dispatched atomic.Int64
	completed  atomic.Int64
	recovered  atomic.Int64
}

// NewWorkerPool creates a pool running at most size dispatches concurrently.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		slots: make(chan struct{}, size),
		done:  make(chan struct{}),
	}
}

// Submit runs fn on a pool goroutine once a slot frees up. It returns
// ctx.Err() if the caller gives up waiting and ErrPoolShutdown once
// Shutdown has begun. fn is responsible for reporting its own task
// outcome; the pool only contains panics.
func (p *WorkerPool) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolShutdown
	}

	// The slot is held. Registering with the WaitGroup must happen under
	// the lock so Shutdown cannot observe an empty group while a dispatch
	// is still being admitted.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return ErrPoolShutdown
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.dispatched.Add(1)
	p.inFlight.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.recovered.Add(1)
			} else {
				p.completed.Add(1)
			}
			p.inFlight.Add(-1)
			<-p.slots
			p.wg.Done()
		}()
		fn(ctx)
	}()

	return nil
}

// Wait blocks until every admitted dispatch has finished.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Shutdown refuses new submissions and waits for in-flight dispatches.
// Safe to call more than once.
func (p *WorkerPool) Shutdown() {
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

// Metrics returns the current dispatch counters.
func (p *WorkerPool) Metrics() PoolMetrics {
	return PoolMetrics{
		InFlight:   p.inFlight.Load(),
		Dispatched: p.dispatched.Load(),
		Completed:  p.completed.Load(),
		Recovered:  p.recovered.Load(),
	}
}
