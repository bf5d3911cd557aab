package route

import (
	"regexp"
	"strings"
)

var (
	versionSegmentRe   = regexp.MustCompile(`^/api/v[0-9]+(/|$)`)
	duplicateVersionRe = regexp.MustCompile(`^(/api/v[0-9]+)/v[0-9]+(/.*)?$`)
)

// Rewrite produces the path the resolved service actually expects. The
// gateway's public surface does not mirror every backend's internal
// surface, so: legacy aliases map to their canonical versioned form,
// duplicated version segments collapse, a missing version segment on a
// versioned service gets the default version injected, and special
// cases apply their rewrite template. The original query string is
// always re-appended verbatim.
//
// Rewrite is idempotent: feeding a rewritten path back through
// resolution and rewriting yields the same path.
func (t *Table) Rewrite(r *Resolved, method, pathWithQuery string) string {
	base := stripQuery(pathWithQuery)
	query := pathWithQuery[len(base):]

	for _, a := range t.aliases {
		if base == a.From {
			base = a.To
			break
		}
	}

	if r.Kind == MatchSpecial && r.Special != nil {
		base = applySpecialRewrite(r.Special, method, base)
	}

	base = collapseDuplicateVersion(base)

	if r.Service.Versioned && !versionSegmentRe.MatchString(base) {
		if rest, ok := strings.CutPrefix(base, "/api"); ok && strings.HasPrefix(rest, "/") {
			base = "/api/" + t.defaultVersion + rest
		}
	}

	return base + query
}

// applySpecialRewrite replaces the matched portion of base with the
// case's template, keeping whatever trails the match. MethodRewrite
// wins over Rewrite for its method.
func applySpecialRewrite(sc *SpecialCase, method string, base string) string {
	tmpl := sc.Rewrite
	if m, ok := sc.MethodRewrite[strings.ToUpper(method)]; ok {
		tmpl = m
	}
	if tmpl == "" {
		return base
	}
	loc := sc.Pattern.FindStringIndex(base)
	if loc == nil {
		return base
	}
	return tmpl + base[loc[1]:]
}

// collapseDuplicateVersion folds "/api/v1/v1/..." into "/api/v1/...".
// Looped so a stack of duplicates cannot survive one rewrite pass.
func collapseDuplicateVersion(base string) string {
	for {
		next := duplicateVersionRe.ReplaceAllString(base, "$1$2")
		if next == base {
			return base
		}
		base = next
	}
}
