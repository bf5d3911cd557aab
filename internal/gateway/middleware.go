package gateway

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vendhub/edge-gateway/internal/logx"
	"github.com/vendhub/edge-gateway/pkg/requestid"
)

type contextFieldSpec struct {
	ctxKey string
	logKey string
}

type accessLogRecord struct {
	RequestID string
	LatencyMS int64
	Extras    map[string]any
}

func (r accessLogRecord) Fields() map[string]any {
	out := make(map[string]any, len(r.Extras)+2)
	if strings.TrimSpace(r.RequestID) != "" {
		out["request_id"] = r.RequestID
	}
	out["latency_ms"] = r.LatencyMS
	for k, v := range r.Extras {
		out[k] = v
	}
	return out
}

var accessLogContextFieldSpecs = []contextFieldSpec{
	{ctxKey: "edge.service", logKey: "service"},
	{ctxKey: "edge.rule", logKey: "rule"},
	{ctxKey: "edge.target_path", logKey: "target_path"},
	{ctxKey: "edge.upstream_status", logKey: "upstream_status"},
	{ctxKey: "edge.rate_remaining", logKey: "rate_remaining"},
}

func requestIDMiddleware(headerKey string) gin.HandlerFunc {
	headerKey = requestid.ResolveHeaderKey(headerKey)
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerKey))
		if id == "" {
			id = requestid.Gen()
		}
		c.Header(headerKey, id)
		c.Set(headerKey, id)
		c.Next()
	}
}

func requestLoggerWithColor(l *log.Logger, color bool, requestIDHeaderKey string, accessFormatter *logx.AccessLogFormatter) gin.HandlerFunc {
	requestIDHeaderKey = requestid.ResolveHeaderKey(requestIDHeaderKey)
	if l == nil {
		l = log.New(os.Stdout, "", log.LstdFlags)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		rec := buildAccessLogRecord(c, requestIDHeaderKey, latency)
		fields := rec.Fields()

		ts := time.Now()
		if accessFormatter != nil {
			l.Println(accessFormatter.Format(ts, status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
			return
		}
		l.Println(logx.FormatRequestLineWithColor(ts, status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
	}
}

func buildAccessLogRecord(c *gin.Context, requestIDHeaderKey string, latency time.Duration) accessLogRecord {
	rec := accessLogRecord{
		RequestID: c.GetString(requestIDHeaderKey),
		LatencyMS: latency.Milliseconds(),
		Extras:    map[string]any{},
	}
	copyContextFieldsBySpec(c, rec.Extras, accessLogContextFieldSpecs)
	return rec
}

func copyContextFieldsBySpec(c *gin.Context, dst map[string]any, specs []contextFieldSpec) {
	for _, s := range specs {
		if v, ok := c.Get(s.ctxKey); ok {
			dst[s.logKey] = v
		}
	}
}

// corsMiddleware answers preflight at the edge so OPTIONS never
// reaches a downstream service.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if origin == "" {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id, X-User-Id")
			c.Header("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
