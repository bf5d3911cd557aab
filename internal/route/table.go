// Package route owns the static routing model of the gateway: the
// per-service descriptors, the resolution of an inbound path to its
// owning service and the rewrite of that path into the form the
// service actually expects.
//
// A Table is built once from configuration and never mutated, so it is
// safe for unsynchronized concurrent reads. Resolution and rewriting
// are pure functions of (path, table).
package route

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vendhub/edge-gateway/internal/config"
)

// Service describes one downstream service: where it lives, how long
// the gateway waits for it and which route prefixes it owns.
type Service struct {
	Name        string
	BaseURL     string
	Timeout     time.Duration
	Headers     map[string]string
	Prefixes    []string
	Versioned   bool
	AdminRoutes bool
}

// SpecialCase reassigns paths matching Pattern to Target, overriding
// the literal prefix owner. Rewrite, when set, replaces the matched
// portion of the path; MethodRewrite overrides Rewrite per HTTP method.
type SpecialCase struct {
	Pattern       *regexp.Regexp
	Target        *Service
	Rewrite       string
	MethodRewrite map[string]string

	source string // pattern text, for duplicate detection and /api/status
}

// Alias maps one legacy public path onto its canonical versioned form.
type Alias struct {
	From string
	To   string
}

// Table is the immutable routing table. All lookups go through it;
// nothing reads routing state from globals.
type Table struct {
	services       []*Service
	byName         map[string]*Service
	specials       []*SpecialCase
	aliases        []Alias
	defaultVersion string
}

// NewTable builds and validates a Table from configuration.
//
// Validation rules: a literal prefix may be owned by exactly one
// service; special-case patterns must compile and be unique; a special
// case naming a target must name a registered service. Special cases
// are ordered most-specific-pattern-first (longest literal prefix of
// the pattern), ties broken by registration order, so overlapping
// patterns resolve deterministically.
func NewTable(cfg *config.Config) (*Table, error) {
	t := &Table{
		byName:         make(map[string]*Service, len(cfg.Services)),
		defaultVersion: cfg.Routing.DefaultVersion,
	}

	for _, sc := range cfg.Services {
		svc := &Service{
			Name:        sc.Name,
			BaseURL:     strings.TrimRight(sc.BaseURL, "/"),
			Timeout:     time.Duration(sc.TimeoutMs) * time.Millisecond,
			Headers:     sc.Headers,
			Prefixes:    append([]string(nil), sc.Prefixes...),
			Versioned:   sc.Versioned,
			AdminRoutes: sc.AdminRoutes,
		}
		t.services = append(t.services, svc)
		t.byName[svc.Name] = svc
	}

	prefixOwner := map[string]string{}
	for _, svc := range t.services {
		for _, p := range svc.Prefixes {
			if owner, dup := prefixOwner[p]; dup {
				return nil, fmt.Errorf("route: prefix %q owned by both %q and %q", p, owner, svc.Name)
			}
			prefixOwner[p] = svc.Name
		}
	}

	seenPatterns := map[string]string{}
	for _, sc := range cfg.Services {
		declaring := t.byName[sc.Name]
		for _, raw := range sc.SpecialCases {
			pat := strings.TrimSpace(raw.Pattern)
			if pat == "" {
				return nil, fmt.Errorf("route: service %q has a special case with an empty pattern", sc.Name)
			}
			if owner, dup := seenPatterns[pat]; dup {
				return nil, fmt.Errorf("route: special case %q registered by both %q and %q", pat, owner, sc.Name)
			}
			seenPatterns[pat] = sc.Name

			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, fmt.Errorf("route: special case %q: %w", pat, err)
			}

			target := declaring
			if name := strings.TrimSpace(raw.Target); name != "" {
				var ok bool
				target, ok = t.byName[name]
				if !ok {
					return nil, fmt.Errorf("route: special case %q targets unknown service %q", pat, name)
				}
			}

			t.specials = append(t.specials, &SpecialCase{
				Pattern:       re,
				Target:        target,
				Rewrite:       raw.Rewrite,
				MethodRewrite: raw.MethodRewrite,
				source:        pat,
			})
		}
	}

	// Most specific pattern first; SliceStable keeps registration
	// order for equally specific patterns.
	sort.SliceStable(t.specials, func(i, j int) bool {
		return len(literalPrefix(t.specials[i].source)) > len(literalPrefix(t.specials[j].source))
	})

	for _, a := range cfg.Routing.Aliases {
		t.aliases = append(t.aliases, Alias{From: a.From, To: a.To})
	}

	return t, nil
}

// Services returns the registered descriptors in registration order.
func (t *Table) Services() []*Service { return t.services }

// ServiceByName returns the descriptor registered under name.
func (t *Table) ServiceByName(name string) (*Service, bool) {
	svc, ok := t.byName[name]
	return svc, ok
}

// DefaultVersion is the version segment injected on unversioned paths.
func (t *Table) DefaultVersion() string { return t.defaultVersion }

// literalPrefix extracts the leading literal run of a regex pattern,
// used to order overlapping special cases by specificity.
func literalPrefix(pattern string) string {
	s := strings.TrimPrefix(pattern, "^")
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{', '.', '*', '+', '?', '|', '\\', '$':
			return s[:i]
		}
	}
	return s
}

// RouteEntry is one row of the operational route listing served at
// /api/status: the declared prefix and its derived variants.
type RouteEntry struct {
	Service   string `json:"service"`
	Prefix    string `json:"prefix"`
	Wildcard  string `json:"wildcard"`
	Versioned string `json:"versioned,omitempty"`
	Admin     string `json:"admin,omitempty"`
}

// SpecialCaseEntry is one special-case row of the route listing.
type SpecialCaseEntry struct {
	Pattern string `json:"pattern"`
	Target  string `json:"target"`
	Rewrite string `json:"rewrite,omitempty"`
}

// Entries enumerates the full table for operational inspection.
func (t *Table) Entries() ([]RouteEntry, []SpecialCaseEntry) {
	routes := make([]RouteEntry, 0, len(t.services)*2)
	for _, svc := range t.services {
		for _, p := range svc.Prefixes {
			e := RouteEntry{
				Service:  svc.Name,
				Prefix:   p,
				Wildcard: p + "/*",
			}
			if rest, ok := strings.CutPrefix(p, "/api"); ok && rest != "" {
				if svc.Versioned {
					e.Versioned = "/api/" + t.defaultVersion + rest
				}
				if svc.AdminRoutes {
					e.Admin = "/api/" + t.defaultVersion + "/admin" + rest
				}
			}
			routes = append(routes, e)
		}
	}
	specials := make([]SpecialCaseEntry, 0, len(t.specials))
	for _, sc := range t.specials {
		specials = append(specials, SpecialCaseEntry{
			Pattern: sc.source,
			Target:  sc.Target.Name,
			Rewrite: sc.Rewrite,
		})
	}
	return routes, specials
}
