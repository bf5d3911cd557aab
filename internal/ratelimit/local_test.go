package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_ConcurrentIncrements(t *testing.T) {
	s := NewLocalStore()
	windowStart := time.Now().Truncate(time.Minute)

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := s.Incr(context.Background(), "user:1", windowStart, time.Minute)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, err := s.Incr(context.Background(), "user:1", windowStart, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine+1), n)
}

func TestLocalStore_WindowResetInPlace(t *testing.T) {
	s := NewLocalStore()
	w1 := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	w2 := w1.Add(time.Minute)

	for i := 0; i < 3; i++ {
		_, err := s.Incr(context.Background(), "ip:10.0.0.1", w1, time.Minute)
		require.NoError(t, err)
	}
	n, err := s.Incr(context.Background(), "ip:10.0.0.1", w2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a new window must start counting from scratch")
}

func TestLocalStore_Cleanup(t *testing.T) {
	s := NewLocalStore()
	old := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	fresh := old.Add(30 * time.Minute)

	_, _ = s.Incr(context.Background(), "stale", old, time.Minute)
	_, _ = s.Incr(context.Background(), "live", fresh, time.Minute)
	require.Equal(t, 2, s.size())

	s.Cleanup(old.Add(time.Minute))
	assert.Equal(t, 1, s.size())

	// The surviving counter keeps its count.
	n, err := s.Incr(context.Background(), "live", fresh, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
