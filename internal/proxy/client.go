// Package proxy executes the single outbound HTTP call of the dispatch
// pipeline: header sanitization, per-call timeout, one attempt, no
// retries. Failures are classified so the dispatch boundary can map
// them onto the caller-visible error taxonomy.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/vendhub/edge-gateway/pkg/httpclient"
)

// FailKind distinguishes the ways one forward attempt can fail.
type FailKind string

const (
	FailTimeout   FailKind = "timeout"
	FailRefused   FailKind = "refused"
	FailMalformed FailKind = "malformed"
	FailCanceled  FailKind = "canceled"
	FailOther     FailKind = "other"
)

// Error wraps a forwarding failure with its classification.
type Error struct {
	Kind FailKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("forward %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or FailOther when err was
// not produced by this package.
func KindOf(err error) FailKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FailOther
}

// hopByHopHeaders are never forwarded, regardless of inbound casing.
// Host travels via the request URL, Content-Length is recomputed.
var hopByHopHeaders = []string{
	"Host",
	"Connection",
	"Transfer-Encoding",
	"Content-Length",
	"Keep-Alive",
	"Upgrade",
	"Proxy-Connection",
}

// BodyKind classifies what came back from the service.
type BodyKind string

const (
	BodyJSON  BodyKind = "json"
	BodyText  BodyKind = "text"
	BodyEmpty BodyKind = "empty"
)

// Request is one outbound call. Body is forwarded verbatim when set;
// JSON, when Body is nil, is marshalled instead — structured payloads
// serialize as JSON by default.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	JSON    any
	Timeout time.Duration
}

// Response is the downstream answer with the raw body retained for
// verbatim relay. Kind reflects a best-effort classification; a
// malformed payload downgrades to text, never to an error.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Kind       BodyKind
}

// Client performs forwarding. HTTP carries no global timeout; every
// call gets its own deadline from Request.Timeout.
type Client struct {
	HTTP httpclient.HTTPDoer
}

// Forward executes exactly one attempt against req.URL.
func (c *Client) Forward(ctx context.Context, req Request) (*Response, error) {
	body := req.Body
	if body == nil && req.JSON != nil {
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, &Error{Kind: FailOther, URL: req.URL, Err: err}
		}
		body = b
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	out, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: FailOther, URL: req.URL, Err: err}
	}
	CopySanitized(out.Header, req.Header)

	resp, err := c.HTTP.Do(out)
	if err != nil {
		return nil, &Error{Kind: classifyTransport(ctx, err), URL: req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		// The backend answered but the body could not be read in
		// full: truncated chunked encoding, reset mid-body, or the
		// per-call deadline expiring during the read.
		kind := FailMalformed
		if classifyTransport(ctx, err) == FailTimeout {
			kind = FailTimeout
		} else if classifyTransport(ctx, err) == FailCanceled {
			kind = FailCanceled
		}
		return nil, &Error{Kind: kind, URL: req.URL, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       raw,
		Kind:       classifyBody(raw),
	}, nil
}

// CopySanitized copies src into dst minus hop-by-hop headers,
// comparing case-insensitively so no casing variant slips through.
func CopySanitized(dst, src http.Header) {
	for k, vs := range src {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// classifyTransport maps a transport error to a failure kind. A parent
// context cancellation means the caller went away; everything
// deadline-shaped is a timeout whether it struck during connect or
// while waiting for the response.
func classifyTransport(parent context.Context, err error) FailKind {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return FailCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailRefused
	}
	return FailOther
}

// classifyBody never fails: JSON when valid, text otherwise, empty
// when there is nothing.
func classifyBody(raw []byte) BodyKind {
	if len(raw) == 0 {
		return BodyEmpty
	}
	if json.Valid(raw) {
		return BodyJSON
	}
	return BodyText
}
