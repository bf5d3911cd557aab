package ratelimit

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// jwtWith builds an unsigned JWT-shaped token carrying the payload.
func jwtWith(payload string) string {
	enc := base64.RawURLEncoding.EncodeToString
	return enc([]byte(`{"alg":"none"}`)) + "." + enc([]byte(payload)) + ".sig"
}

func TestIdentity_AttachedUserWins(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/orders", nil)
	r.RemoteAddr = "203.0.113.9:4242"
	r.Header.Set("X-User-Id", "u-77")
	r.Header.Set("Authorization", "Bearer "+jwtWith(`{"sub":"u-99"}`))
	assert.Equal(t, "user:u-77", Identity(r, false))
}

func TestIdentity_BearerClaims(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{`{"sub":"u-1"}`, "user:u-1"},
		{`{"user_id":"u-2"}`, "user:u-2"},
		{`{"id":"u-3"}`, "user:u-3"},
		{`{"sub":"","user_id":"u-4"}`, "user:u-4"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/api/v1/orders", nil)
		r.RemoteAddr = "203.0.113.9:4242"
		r.Header.Set("Authorization", "Bearer "+jwtWith(tc.payload))
		assert.Equal(t, tc.want, Identity(r, false), "payload %s", tc.payload)
	}
}

func TestIdentity_MalformedBearerFallsBackToIP(t *testing.T) {
	for _, authz := range []string{
		"Bearer not-a-jwt",
		"Bearer a.b",                   // two segments
		"Bearer a.!!invalid-b64!!.c",   // undecodable payload
		"Basic dXNlcjpwYXNz",           // not bearer at all
		"Bearer " + jwtWith(`{"x":1}`), // no id claim
	} {
		r := httptest.NewRequest("GET", "/api/v1/orders", nil)
		r.RemoteAddr = "203.0.113.9:4242"
		r.Header.Set("Authorization", authz)
		assert.Equal(t, "ip:203.0.113.9", Identity(r, false), "authz %q", authz)
	}
}

func TestIdentity_ForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/orders", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.2")

	assert.Equal(t, "ip:198.51.100.7", Identity(r, true))
	// Untrusted: the proxy hop is the caller.
	assert.Equal(t, "ip:10.0.0.2", Identity(r, false))
}
