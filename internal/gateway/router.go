package gateway

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendhub/edge-gateway/internal/config"
	"github.com/vendhub/edge-gateway/internal/logx"
	"github.com/vendhub/edge-gateway/internal/version"
	"github.com/vendhub/edge-gateway/pkg/requestid"
)

func NewRouter(
	cfg *config.Config,
	st *state,
	accessLogger *log.Logger,
	accessLoggerColor bool,
	requestIDHeaderKey string,
	accessFormatter *logx.AccessLogFormatter,
) *gin.Engine {
	resolvedRequestIDHeaderKey := requestid.ResolveHeaderKey(requestIDHeaderKey)
	r := gin.New()
	r.Use(requestIDMiddleware(resolvedRequestIDHeaderKey))
	if cfg.Logging.AccessLog {
		r.Use(requestLoggerWithColor(accessLogger, accessLoggerColor, resolvedRequestIDHeaderKey, accessFormatter))
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":                 true,
			"version":            version.Version,
			"rate_limit_backend": st.backend,
			"uptime_s":           int64(time.Since(st.startedAt) / time.Second),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/status", statusHandler(st))

	// Every other path goes through resolution; gin's router only owns
	// the operational endpoints above.
	r.NoRoute(dispatchHandler(st, resolvedRequestIDHeaderKey))

	return r
}

func statusHandler(st *state) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl := st.Table()
		routes, specials := tbl.Entries()
		c.JSON(http.StatusOK, gin.H{
			"services":      len(tbl.Services()),
			"routes":        routes,
			"special_cases": specials,
			"rate_limit": gin.H{
				"enabled":      st.limiter != nil,
				"backend":      st.backend,
				"max_requests": st.cfg.RateLimit.MaxRequests,
				"window_ms":    st.cfg.RateLimit.WindowMs,
			},
			"started_at": st.startedAt.UTC().Format(time.RFC3339),
		})
	}
}
