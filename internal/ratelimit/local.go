package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalStore is the in-process fallback counter store used when the
// shared store is unreachable at startup. Safe for concurrent use; one
// lock guards the whole map, which is fine at gateway request rates.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	count       int64
	windowStart time.Time
}

func NewLocalStore() *LocalStore {
	return &LocalStore{entries: make(map[string]*localEntry)}
}

// Incr implements Store. A counter left over from an earlier window is
// reset in place rather than waiting for the janitor.
func (s *LocalStore) Incr(_ context.Context, key string, windowStart time.Time, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !ent.windowStart.Equal(windowStart) {
		ent = &localEntry{windowStart: windowStart}
		s.entries[key] = ent
	}
	ent.count++
	return ent.count, nil
}

// Cleanup drops counters whose window started before cutoff.
func (s *LocalStore) Cleanup(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.windowStart.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor periodically removes counters from expired windows.
// Stop it by cancelling the context.
func (s *LocalStore) StartJanitor(ctx context.Context, every, window time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup(time.Now().Add(-2 * window))
			}
		}
	}()
}

func (s *LocalStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
