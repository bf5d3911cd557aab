// Package ratelimit implements the admission gate applied before the
// dispatch pipeline: a fixed-window counter per identity, backed by a
// shared Redis store when a startup liveness probe succeeds and by a
// local in-memory store otherwise. Shared-store failures after startup
// are always fail-open: the request is admitted and the failure is
// logged, never surfaced to the caller.
package ratelimit

import (
	"context"
	"log"
	"time"
)

// Store atomically increments the counter for key within the window
// starting at windowStart and returns the post-increment count. The
// counter must expire on its own once the window has passed.
type Store interface {
	Incr(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int64, error)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter checks one identity against the configured window.
type Limiter struct {
	store  Store
	max    int
	window time.Duration

	now func() time.Time // test hook
}

func New(store Store, max int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Check admits or rejects one request for identity. Request N within a
// window is the last one admitted when max is N; N+1 is rejected with
// Remaining 0 and a populated RetryAfter. A store error admits the
// request (fail-open) and is only logged.
func (l *Limiter) Check(ctx context.Context, identity string) Decision {
	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)

	count, err := l.store.Incr(ctx, identity, windowStart, l.window)
	if err != nil {
		log.Printf("rate limit: counter increment failed, admitting request: %v", err)
		return Decision{
			Allowed:   true,
			Limit:     l.max,
			Remaining: l.max,
			ResetAt:   resetAt,
		}
	}

	if count > int64(l.max) {
		return Decision{
			Allowed:    false,
			Limit:      l.max,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
