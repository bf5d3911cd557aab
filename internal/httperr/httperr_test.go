package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeGatewayTimeout, http.StatusGatewayTimeout},
		{CodeBadGateway, http.StatusBadGateway},
		{CodeClientClosedRequest, 499},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.Status(); got != tc.want {
			t.Fatalf("%s status=%d want=%d", tc.code, got, tc.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	err := New(CodeNotFound, "no route")
	if got := CodeOf(err); got != CodeNotFound {
		t.Fatalf("CodeOf=%s", got)
	}
	wrapped := fmt.Errorf("dispatch: %w", Wrap(CodeBadGateway, "upstream", errors.New("boom")))
	if got := CodeOf(wrapped); got != CodeBadGateway {
		t.Fatalf("CodeOf wrapped=%s", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Fatalf("CodeOf plain=%s", got)
	}
}

func TestNewEnvelopeHidesDetailInProduction(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:80: connection refused")
	err := Wrap(CodeBadGateway, "upstream unavailable", cause)

	env := NewEnvelope(err, "req-1", false)
	if env.Status != http.StatusBadGateway || env.Code != CodeBadGateway {
		t.Fatalf("envelope=%+v", env)
	}
	if env.Message != "upstream unavailable" {
		t.Fatalf("message=%q", env.Message)
	}
	if env.Detail != "" {
		t.Fatalf("production envelope leaked detail: %q", env.Detail)
	}
	if env.RequestID != "req-1" {
		t.Fatalf("requestId=%q", env.RequestID)
	}
	if env.Timestamp == "" {
		t.Fatalf("timestamp missing")
	}
}

func TestNewEnvelopeDevelopmentDetail(t *testing.T) {
	err := Wrap(CodeGatewayTimeout, "upstream timed out", errors.New("context deadline exceeded"))
	env := NewEnvelope(err, "req-2", true)
	if env.Detail == "" {
		t.Fatalf("development envelope should carry detail")
	}
}

func TestNewEnvelopeUnclassified(t *testing.T) {
	env := NewEnvelope(errors.New("boom"), "", false)
	if env.Code != CodeInternal || env.Status != http.StatusInternalServerError {
		t.Fatalf("envelope=%+v", env)
	}
	if env.Message != "internal error" {
		t.Fatalf("unclassified message leaked: %q", env.Message)
	}
}
