package core

// run_limiter.go implements concurrency control for validation runs.
//
// Two constraints are enforced together:
//
//   - A semaphore caps the number of runs executing at once, protecting the
//     process from resource exhaustion under load.
//   - A dedup set guarantees at most one in-flight run per (template,
//     fingerprint) pair, so re-submitting the same file while a run is
//     pending rejects instead of racing.
//
// The limiter also supports graceful shutdown via WaitForDrain, which blocks
// until all active runs complete.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

type runKey struct {
	templateID  uuid.UUID
	fingerprint string
}

// RunLimiter controls concurrent run processing.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu       sync.RWMutex
	active   int
	inFlight map[runKey]struct{}
}

// NewRunLimiter creates a limiter allowing at most maxConcurrent
// simultaneous runs. Requests that cannot take a slot within maxWait receive
// ErrTooManyRuns.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &RunLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		inFlight:  make(map[runKey]struct{}),
	}
}

// Acquire claims a run slot for the given template and file fingerprint.
// It fails fast with ErrRunInFlight when the same pair is already being
// processed, and with ErrTooManyRuns when no slot frees up within the wait
// window. The caller must call Release with the same arguments exactly once
// per successful Acquire.
func (l *RunLimiter) Acquire(ctx context.Context, templateID uuid.UUID, fingerprint string) error {
	key := runKey{templateID, fingerprint}

	l.mu.Lock()
	if _, dup := l.inFlight[key]; dup {
		l.mu.Unlock()
		return fmt.Errorf("%w: template %s, file %.12s", ErrRunInFlight, templateID, fingerprint)
	}
	l.inFlight[key] = struct{}{}
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		l.mu.Lock()
		delete(l.inFlight, key)
		l.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
}

// Release frees the slot and the in-flight key claimed by Acquire.
func (l *RunLimiter) Release(templateID uuid.UUID, fingerprint string) {
	l.mu.Lock()
	l.active--
	delete(l.inFlight, runKey{templateID, fingerprint})
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of currently executing runs.
func (l *RunLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *RunLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active runs complete or ctx is cancelled.
// Used for graceful shutdown.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter for monitoring.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return RunLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
