package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter caps how many starts may happen within any rolling window.
// It records start timestamps and admits a new start only once fewer than
// max of them fall inside the window.
type WindowLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
	now    func() time.Time
}

func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		max:    max,
		window: window,
		starts: make([]time.Time, 0, max),
		now:    time.Now,
	}
}

// Allow reports whether a start is admitted right now and records it if so.
func (l *WindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.starts) >= l.max {
		return false
	}
	l.starts = append(l.starts, now)
	return true
}

// Acquire blocks until a start is admitted or the context ends.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.pruneLocked(now)
		if len(l.starts) < l.max {
			l.starts = append(l.starts, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.starts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *WindowLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.starts[:0]
	for _, start := range l.starts {
		if start.After(cutoff) {
			kept = append(kept, start)
		}
	}
	l.starts = kept
}
