package youtube

import (
	"context"
	"sync"
	"time"
)

// entry tracks the call count and window end for a single key.
type entry struct {
	count     int
	windowEnd time.Time
}

// Limiter is an in-memory fixed-window budget for outbound API calls,
// keyed by endpoint. Unlike a server-side limiter it never rejects:
// Wait blocks until the window rolls over, so one endpoint's backoff
// does not consume another endpoint's budget.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	max     int
	window  time.Duration
}

// NewLimiter creates a limiter allowing max calls per key per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		max:     max,
		window:  window,
	}
}

// Wait blocks until a call under key fits the current window, or the
// context is cancelled.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		ok, wait := l.reserve(key)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow reports whether a call under key fits the current window,
// consuming budget when it does (for testing).
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.reserve(key)
	return ok
}

func (l *Limiter) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, exists := l.entries[key]
	if !exists || now.After(e.windowEnd) {
		l.entries[key] = &entry{
			count:     1,
			windowEnd: now.Add(l.window),
		}
		return true, 0
	}

	if e.count < l.max {
		e.count++
		return true, 0
	}

	return false, time.Until(e.windowEnd)
}
