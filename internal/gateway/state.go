package gateway

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vendhub/edge-gateway/internal/config"
	"github.com/vendhub/edge-gateway/internal/proxy"
	"github.com/vendhub/edge-gateway/internal/ratelimit"
	"github.com/vendhub/edge-gateway/internal/route"
)

// state carries the runtime the handlers read on every request. The
// route table is swapped atomically on reload; everything else is
// fixed for the process lifetime.
type state struct {
	cfg    *config.Config
	table  atomic.Pointer[route.Table]
	client *proxy.Client

	limiter  *ratelimit.Limiter
	backend  ratelimit.Backend
	throttle *rate.Limiter

	startedAt time.Time
}

func newState(cfg *config.Config, tbl *route.Table, client *proxy.Client) *state {
	st := &state{
		cfg:       cfg,
		client:    client,
		startedAt: time.Now(),
	}
	st.table.Store(tbl)
	return st
}

func (s *state) Table() *route.Table { return s.table.Load() }

func (s *state) SwapTable(t *route.Table) { s.table.Store(t) }
