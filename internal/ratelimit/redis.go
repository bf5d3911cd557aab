package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts in the shared Redis store so all gateway replicas
// see one window per identity. INCR+EXPIRE run in one pipeline; there
// is no gateway-side locking.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Incr implements Store. The key embeds the window start so counters
// from different windows never collide; expiry runs slightly past the
// window end so a reset is observable until it happens.
func (s *RedisStore) Incr(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int64, error) {
	k := fmt.Sprintf("%s:%s:%d", s.prefix, key, windowStart.Unix())

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error { return s.rdb.Close() }
