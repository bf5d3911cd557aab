package ratelimit

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names which counter store the limiter ended up on.
type Backend string

const (
	BackendShared Backend = "shared"
	BackendLocal  Backend = "local"
)

// SharedStoreOptions configures the probe of the shared counter store.
type SharedStoreOptions struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	ProbeTimeout time.Duration
}

// SelectStore performs the startup backend selection exactly once:
// probe the shared store with a bounded timeout; on success use it for
// the process lifetime, otherwise fall back to the local store
// permanently. There is no later re-probe; a restart is required to
// pick the shared store back up.
func SelectStore(ctx context.Context, opts SharedStoreOptions) (Store, Backend) {
	if strings.TrimSpace(opts.Addr) == "" {
		log.Printf("rate limit: no shared store configured, using local counters")
		return NewLocalStore(), BackendLocal
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	_, err := rdb.Ping(probeCtx).Result()
	cancel()
	if err != nil {
		_ = rdb.Close()
		log.Printf("rate limit: shared store probe failed (%v), using local counters for process lifetime", err)
		return NewLocalStore(), BackendLocal
	}

	log.Printf("rate limit: using shared store at %s", opts.Addr)
	return NewRedisStore(rdb, opts.KeyPrefix), BackendShared
}
