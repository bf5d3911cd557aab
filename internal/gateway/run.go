package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/vendhub/edge-gateway/internal/config"
	"github.com/vendhub/edge-gateway/internal/logx"
	"github.com/vendhub/edge-gateway/internal/metrics"
	"github.com/vendhub/edge-gateway/internal/proxy"
	"github.com/vendhub/edge-gateway/internal/ratelimit"
	"github.com/vendhub/edge-gateway/internal/route"
	"github.com/vendhub/edge-gateway/pkg/requestid"
)

func Run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	accessLogger, accessClose, accessColor, err := openAccessLogger(cfg)
	if err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	if accessClose != nil {
		defer func() { _ = accessClose.Close() }()
	}

	tbl, err := route.NewTable(cfg)
	if err != nil {
		return fmt.Errorf("build route table: %w", err)
	}

	accessFormat, err := logx.ResolveAccessLogFormat(cfg.Logging.AccessLogFormat, cfg.Logging.AccessLogFormatPreset)
	if err != nil {
		return fmt.Errorf("resolve access log format: %w", err)
	}
	accessFormatter, err := logx.CompileAccessLogFormat(accessFormat)
	if err != nil {
		return fmt.Errorf("compile access_log_format: %w", err)
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := newState(cfg, tbl, &proxy.Client{HTTP: &http.Client{}})

	if cfg.RateLimit.Enabled {
		window := time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond
		store, backend := ratelimit.SelectStore(ctx, ratelimit.SharedStoreOptions{
			Addr:         cfg.RateLimit.Redis.Addr,
			Password:     cfg.RateLimit.Redis.Password,
			DB:           cfg.RateLimit.Redis.DB,
			KeyPrefix:    cfg.RateLimit.Redis.KeyPrefix,
			ProbeTimeout: time.Duration(cfg.RateLimit.Redis.ProbeTimeoutMs) * time.Millisecond,
		})
		if ls, ok := store.(*ratelimit.LocalStore); ok {
			ls.StartJanitor(ctx, 2*time.Minute, window)
		}
		st.limiter = ratelimit.New(store, cfg.RateLimit.MaxRequests, window)
		st.backend = backend
	}
	if cfg.RateLimit.GlobalRPS > 0 {
		st.throttle = rate.NewLimiter(rate.Limit(cfg.RateLimit.GlobalRPS), cfg.RateLimit.GlobalBurst)
	}

	autoReloadClose, err := installRoutesAutoReload(cfgPath, cfg, st)
	if err != nil {
		return fmt.Errorf("init routes auto reload: %w", err)
	}
	if autoReloadClose != nil {
		defer func() { _ = autoReloadClose.Close() }()
	}

	engine := NewRouter(cfg, st, accessLogger, accessColor, requestid.DefaultHeaderKey, accessFormatter)

	srv := &http.Server{
		Addr:        cfg.Server.Listen,
		Handler:     engine,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		// WriteTimeout must outlast the slowest per-service deadline,
		// so forwarding never races the server's own clock.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	go func() {
		<-ctx.Done()
		grace := time.Duration(cfg.Server.ShutdownGraceMs) * time.Millisecond
		shutCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("edge-gateway listening on %s (services=%d)", cfg.Server.Listen, len(tbl.Services()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func openAccessLogger(cfg *config.Config) (*log.Logger, io.Closer, bool, error) {
	if cfg == nil || !cfg.Logging.AccessLog {
		return nil, nil, false, nil
	}

	path := strings.TrimSpace(cfg.Logging.AccessLogPath)
	if path == "" {
		return log.New(os.Stdout, "", log.LstdFlags), nil, logx.ColorEnabled(), nil
	}

	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, false, err
		}
	}
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, false, err
	}
	return log.New(f, "", log.LstdFlags), f, false, nil
}
