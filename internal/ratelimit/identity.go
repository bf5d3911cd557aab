package ratelimit

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Identity derives the counter key for one request: the user id from
// the attached authentication decision when present, then one carried
// by a bearer token, else the caller IP. User and IP identities live
// in separate namespaces so they can never collide.
func Identity(r *http.Request, trustForwardedFor bool) string {
	if v := strings.TrimSpace(r.Header.Get("X-User-Id")); v != "" {
		return "user:" + v
	}
	if id := bearerUserID(r.Header.Get("Authorization")); id != "" {
		return "user:" + id
	}
	return "ip:" + clientIP(r, trustForwardedFor)
}

type bearerClaims struct {
	Sub    string `json:"sub"`
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

// bearerUserID extracts a user id from a JWT-shaped bearer token.
// Verification is the auth layer's job; the claims are only used to
// key the counter window, so an unverifiable token is simply ignored.
func bearerUserID(authz string) string {
	v := strings.TrimSpace(authz)
	if !strings.HasPrefix(v, "Bearer ") {
		return ""
	}
	tok := strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	var claims bearerClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	for _, id := range []string{claims.Sub, claims.UserID, claims.ID} {
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	}
	return ""
}

func clientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
