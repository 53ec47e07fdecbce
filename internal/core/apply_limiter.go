package core

// apply_limiter.go caps how many bulk applies run at once across all owners.
// Applies are bursts of sequential store writes; the limiter keeps a flood of
// large imports from exhausting the connection pool. Waiters give up after
// maxWait with ErrTooManyApplies. WaitForDrain lets shutdown finish running
// applies first.

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrTooManyApplies is returned when no apply slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyApplies = errors.New("too many concurrent applies, please try again later")

// DefaultMaxConcurrentApplies is the default limit for parallel applies.
const DefaultMaxConcurrentApplies = 4

// DefaultApplyWaitTime is how long to wait for a slot before rejecting.
const DefaultApplyWaitTime = 10 * time.Second

// ApplyLimiter is a counting semaphore over bulk applies.
type ApplyLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewApplyLimiter creates a limiter that allows at most maxConcurrent applies.
func NewApplyLimiter(maxConcurrent int, maxWait time.Duration) *ApplyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentApplies
	}
	if maxWait <= 0 {
		maxWait = DefaultApplyWaitTime
	}

	return &ApplyLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a slot. The caller must Release after a nil return.
func (l *ApplyLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-timer.C:
		return ErrTooManyApplies

	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking.
func (l *ApplyLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ApplyLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of running applies.
func (l *ApplyLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *ApplyLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no apply is running or ctx is done.
func (l *ApplyLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ApplyLimiterStatus is a snapshot of the limiter, served by /healthz.
type ApplyLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *ApplyLimiter) Status() ApplyLimiterStatus {
	return ApplyLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.semaphore),
	}
}
