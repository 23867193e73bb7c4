package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Task is a unit of work run on a pool goroutine. The context it receives is
// cancelled when the submitter stops waiting.
type Task func(ctx context.Context) (any, error)

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Pool executes tasks with bounded concurrency.
type Pool struct {
	limiter *Limiter

	// mu orders wg.Add in Submit against wg.Wait in Close.
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewPool creates a pool governed by cfg.
func NewPool(cfg LimiterConfig) *Pool {
	return &Pool{limiter: NewLimiter(cfg)}
}

// Submit starts task on its own goroutine and returns its Future. The
// goroutine waits for a permit before running; a failure to get one resolves
// the Future with that error.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	taskCtx, cancel := context.WithCancel(ctx)
	f := &Future{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer p.wg.Done()
		defer cancel()

		if err := p.limiter.Acquire(taskCtx); err != nil {
			f.resolve(nil, err)
			return
		}
		defer p.limiter.Release()

		f.resolve(run(taskCtx, task))
	}()

	return f, nil
}

func run(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

// Stats returns the limiter counters.
func (p *Pool) Stats() Stats {
	return p.limiter.Stats()
}

// Close stops accepting tasks, wakes tasks still waiting for a permit, and
// waits for running tasks to finish or ctx to end.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.limiter.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Future is the pending result of a submitted task.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  any
	err    error
}

func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Wait blocks until the task finishes or ctx is done. When ctx ends first the
// task's context is cancelled and ctx.Err() is returned; the task goroutine
// keeps running until it observes the cancellation.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		f.cancel()
		return nil, ctx.Err()
	}
}
