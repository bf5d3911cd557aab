package route

import (
	"errors"
	"regexp"
	"strings"
)

// MatchKind records which resolution rule chose the service; the
// rewriter behaves differently per kind.
type MatchKind string

const (
	MatchSpecial   MatchKind = "special"
	MatchVersioned MatchKind = "versioned"
	MatchPrefix    MatchKind = "prefix"
)

// ErrNoRoute is returned when no rule claims the path.
var ErrNoRoute = errors.New("no route for path")

// Resolved is the outcome of resolution: the owning service, the rule
// that matched and, for special cases, the case itself.
type Resolved struct {
	Service *Service
	Kind    MatchKind
	Special *SpecialCase
}

var versionedPathRe = regexp.MustCompile(`^/api/v[0-9]+/([^/]+)(?:/([^/?]+))?`)

// Resolve maps an inbound path (query string permitted and ignored) to
// its owning service. Precedence is strict and first match wins:
// special cases, then versioned routes (with admin re-resolution),
// then literal prefixes. Identical inputs always resolve identically.
func (t *Table) Resolve(path string) (*Resolved, error) {
	base := stripQuery(path)

	for _, sc := range t.specials {
		if sc.Pattern.MatchString(base) {
			return &Resolved{Service: sc.Target, Kind: MatchSpecial, Special: sc}, nil
		}
	}

	if m := versionedPathRe.FindStringSubmatch(base); m != nil {
		segment := m[1]
		if segment == "admin" {
			if nested := m[2]; nested != "" {
				if svc := t.findSegmentOwner(nested, true); svc != nil {
					return &Resolved{Service: svc, Kind: MatchVersioned}, nil
				}
			}
		} else if svc := t.findSegmentOwner(segment, false); svc != nil {
			return &Resolved{Service: svc, Kind: MatchVersioned}, nil
		}
	}

	for _, svc := range t.services {
		for _, p := range svc.Prefixes {
			if prefixMatches(base, p) {
				return &Resolved{Service: svc, Kind: MatchPrefix}, nil
			}
		}
	}

	return nil, ErrNoRoute
}

// findSegmentOwner locates the versioned service whose prefix's second
// segment equals segment. With admin=true only services exposing admin
// sub-routes qualify.
func (t *Table) findSegmentOwner(segment string, admin bool) *Service {
	for _, svc := range t.services {
		if !svc.Versioned {
			continue
		}
		if admin && !svc.AdminRoutes {
			continue
		}
		for _, p := range svc.Prefixes {
			if prefixSegment(p) == segment {
				return svc
			}
		}
	}
	return nil
}

// prefixSegment returns the second path segment of a declared prefix:
// "/api/products" -> "products".
func prefixSegment(prefix string) string {
	parts := strings.SplitN(strings.TrimPrefix(prefix, "/"), "/", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// prefixMatches reports whether base is prefix itself or a sub-path of
// it. Bare prefix containment is not enough: "/api/product" must not
// claim "/api/products/1".
func prefixMatches(base, prefix string) bool {
	if !strings.HasPrefix(base, prefix) {
		return false
	}
	return len(base) == len(prefix) || base[len(prefix)] == '/'
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
