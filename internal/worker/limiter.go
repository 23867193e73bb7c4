// Package worker runs handler invocations off the caller's goroutine.
//
// A Pool bounds how many tasks execute at once with a permit Limiter. Every
// submitted task gets its own goroutine and a Future; the goroutine waits for
// a permit, runs the task with panics recovered, and resolves the Future.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Common errors
var (
	ErrQueueFull      = errors.New("worker queue full")
	ErrAcquireTimeout = errors.New("timed out waiting for a worker permit")
	ErrClosed         = errors.New("worker pool is closed")
)

// LimiterConfig bounds concurrent execution.
type LimiterConfig struct {
	// MaxConcurrent is the number of tasks allowed to run at once.
	// 0 means unlimited.
	MaxConcurrent int

	// AcquireTimeout caps the wait for a permit. 0 waits until the task's
	// context is done.
	AcquireTimeout time.Duration

	// QueueSize caps how many tasks may wait for a permit. 0 means unlimited.
	QueueSize int
}

// DefaultLimiterConfig returns the limits used when none are configured.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxConcurrent:  64,
		AcquireTimeout: 30 * time.Second,
		QueueSize:      1024,
	}
}

// Limiter hands out execution permits.
type Limiter struct {
	config  LimiterConfig
	permits chan struct{}
	done    chan struct{}
	once    sync.Once

	waiting int32
	active  int32

	totalAcquired int64
	totalRejected int64
	totalTimeouts int64
}

// NewLimiter creates a limiter with all permits available.
func NewLimiter(config LimiterConfig) *Limiter {
	l := &Limiter{
		config: config,
		done:   make(chan struct{}),
	}
	if config.MaxConcurrent > 0 {
		l.permits = make(chan struct{}, config.MaxConcurrent)
		for i := 0; i < config.MaxConcurrent; i++ {
			l.permits <- struct{}{}
		}
	}
	return l
}

// Acquire blocks until a permit is free, ctx is done, the acquire timeout
// elapses or the limiter is closed.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.isClosed() {
		return ErrClosed
	}
	if l.permits == nil {
		l.granted()
		return nil
	}

	queued := atomic.AddInt32(&l.waiting, 1)
	defer atomic.AddInt32(&l.waiting, -1)
	if l.config.QueueSize > 0 && int(queued) > l.config.QueueSize {
		atomic.AddInt64(&l.totalRejected, 1)
		return ErrQueueFull
	}

	var timeout <-chan time.Time
	if l.config.AcquireTimeout > 0 {
		timer := time.NewTimer(l.config.AcquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-l.permits:
		l.granted()
		return nil
	case <-ctx.Done():
		atomic.AddInt64(&l.totalTimeouts, 1)
		return ctx.Err()
	case <-timeout:
		atomic.AddInt64(&l.totalTimeouts, 1)
		return ErrAcquireTimeout
	case <-l.done:
		return ErrClosed
	}
}

func (l *Limiter) granted() {
	atomic.AddInt32(&l.active, 1)
	atomic.AddInt64(&l.totalAcquired, 1)
}

// Release returns a permit.
func (l *Limiter) Release() {
	atomic.AddInt32(&l.active, -1)
	if l.permits == nil {
		return
	}
	select {
	case l.permits <- struct{}{}:
	default:
	}
}

// Close wakes every waiter with ErrClosed. Permits already held stay valid.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Stats is a point-in-time view of limiter usage.
type Stats struct {
	MaxConcurrent int   `json:"max_concurrent"`
	Active        int   `json:"active"`
	Waiting       int   `json:"waiting"`
	TotalAcquired int64 `json:"total_acquired"`
	TotalRejected int64 `json:"total_rejected"`
	TotalTimeouts int64 `json:"total_timeouts"`
}

// Stats returns current counters.
func (l *Limiter) Stats() Stats {
	return Stats{
		MaxConcurrent: l.config.MaxConcurrent,
		Active:        int(atomic.LoadInt32(&l.active)),
		Waiting:       int(atomic.LoadInt32(&l.waiting)),
		TotalAcquired: atomic.LoadInt64(&l.totalAcquired),
		TotalRejected: atomic.LoadInt64(&l.totalRejected),
		TotalTimeouts: atomic.LoadInt64(&l.totalTimeouts),
	}
}
