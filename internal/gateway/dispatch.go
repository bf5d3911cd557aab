package gateway

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vendhub/edge-gateway/internal/httperr"
	"github.com/vendhub/edge-gateway/internal/metrics"
	"github.com/vendhub/edge-gateway/internal/proxy"
	"github.com/vendhub/edge-gateway/internal/ratelimit"
	"github.com/vendhub/edge-gateway/pkg/requestid"
)

// dispatchHandler is the catch-all pipeline: admission, resolution,
// rewrite, one forward attempt, verbatim relay. Anything that falls
// out of the pipeline turns into the uniform error envelope.
func dispatchHandler(st *state, requestIDHeaderKey string) gin.HandlerFunc {
	requestIDHeaderKey = requestid.ResolveHeaderKey(requestIDHeaderKey)
	return func(c *gin.Context) {
		start := time.Now()

		if st.throttle != nil && !st.throttle.Allow() {
			metrics.RateLimitRejections.Inc()
			endWithError(c, st, requestIDHeaderKey, httperr.New(httperr.CodeTooManyRequests, "gateway is saturated, retry shortly"))
			return
		}

		if st.limiter != nil {
			identity := ratelimit.Identity(c.Request, st.cfg.RateLimit.TrustForwardedFor)
			dec := st.limiter.Check(c.Request.Context(), identity)
			setRateLimitHeaders(c, dec)
			c.Set("edge.rate_remaining", dec.Remaining)
			if !dec.Allowed {
				metrics.RateLimitRejections.Inc()
				endWithError(c, st, requestIDHeaderKey, httperr.New(httperr.CodeTooManyRequests, "rate limit exceeded"))
				return
			}
		}

		tbl := st.Table()
		pathWithQuery := c.Request.URL.RequestURI()
		resolved, err := tbl.Resolve(c.Request.URL.Path)
		if err != nil {
			endWithError(c, st, requestIDHeaderKey, httperr.Wrap(httperr.CodeNotFound, "no service handles this path", err))
			return
		}
		target := tbl.Rewrite(resolved, c.Request.Method, pathWithQuery)

		c.Set("edge.service", resolved.Service.Name)
		c.Set("edge.rule", string(resolved.Kind))
		c.Set("edge.target_path", target)

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			endWithError(c, st, requestIDHeaderKey, httperr.Wrap(httperr.CodeClientClosedRequest, "request body aborted", err))
			return
		}

		hdr := outboundHeaders(c, requestIDHeaderKey)
		for k, v := range resolved.Service.Headers {
			hdr.Set(k, v)
		}

		resp, err := st.client.Forward(c.Request.Context(), proxy.Request{
			Method:  c.Request.Method,
			URL:     strings.TrimSuffix(resolved.Service.BaseURL, "/") + target,
			Header:  hdr,
			Body:    body,
			Timeout: resolved.Service.Timeout,
		})
		if err != nil {
			kind := proxy.KindOf(err)
			metrics.ForwardFailures.WithLabelValues(string(kind)).Inc()
			endWithError(c, st, requestIDHeaderKey, forwardError(kind, err))
			return
		}

		c.Set("edge.upstream_status", resp.StatusCode)
		relay(c, resp)

		metrics.RequestsTotal.WithLabelValues(resolved.Service.Name, strconv.Itoa(resp.StatusCode)).Inc()
		metrics.RequestDuration.WithLabelValues(resolved.Service.Name).Observe(time.Since(start).Seconds())
	}
}

// outboundHeaders clones the inbound headers and stamps the forwarding
// chain plus any per-service extras. Hop-by-hop headers are stripped
// at the forwarding layer.
func outboundHeaders(c *gin.Context, requestIDHeaderKey string) http.Header {
	out := c.Request.Header.Clone()

	clientIP, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		clientIP = c.Request.RemoteAddr
	}
	if prior := out.Get("X-Forwarded-For"); prior != "" {
		out.Set("X-Forwarded-For", prior+", "+clientIP)
	} else if clientIP != "" {
		out.Set("X-Forwarded-For", clientIP)
	}
	out.Set("X-Forwarded-Host", c.Request.Host)
	proto := "http"
	if c.Request.TLS != nil {
		proto = "https"
	}
	out.Set("X-Forwarded-Proto", proto)
	if id := c.GetString(requestIDHeaderKey); id != "" {
		out.Set(requestIDHeaderKey, id)
	}
	return out
}

// relay writes the downstream answer back unmodified: status, filtered
// headers, raw body. Gateway-owned headers always win over whatever
// the service set.
func relay(c *gin.Context, resp *proxy.Response) {
	dst := c.Writer.Header()
	for k, vs := range resp.Header {
		if isGatewayOwnedHeader(k) {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	c.Status(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
}

func isGatewayOwnedHeader(key string) bool {
	switch {
	case strings.EqualFold(key, "Retry-After"):
		return true
	case strings.HasPrefix(strings.ToLower(key), "x-ratelimit-"):
		return true
	}
	for _, h := range []string{"Connection", "Transfer-Encoding", "Content-Length", "Keep-Alive", "Upgrade", "Proxy-Connection"} {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}

func setRateLimitHeaders(c *gin.Context, dec ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(dec.RetryAfter)))
}

// retryAfterSeconds rounds up. A rejection in the last sub-second of
// the window must never advertise an immediate retry.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func forwardError(kind proxy.FailKind, err error) *httperr.Error {
	switch kind {
	case proxy.FailTimeout:
		return httperr.Wrap(httperr.CodeGatewayTimeout, "service did not respond in time", err)
	case proxy.FailRefused:
		return httperr.Wrap(httperr.CodeBadGateway, "service is unavailable", err)
	case proxy.FailMalformed:
		return httperr.Wrap(httperr.CodeBadGateway, "service returned an unreadable response", err)
	case proxy.FailCanceled:
		return httperr.Wrap(httperr.CodeClientClosedRequest, "client closed the request", err)
	default:
		return httperr.Wrap(httperr.CodeInternal, "forwarding failed", err)
	}
}

// endWithError renders the uniform envelope. resolved route info, when
// present, was already attached to the context for the access log.
func endWithError(c *gin.Context, st *state, requestIDHeaderKey string, err error) {
	env := httperr.NewEnvelope(err, c.GetString(requestIDHeaderKey), st.cfg.Server.Development)
	c.AbortWithStatusJSON(env.Status, env)
}
