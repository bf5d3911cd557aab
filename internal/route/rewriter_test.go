package route

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveRewrite runs the full pipeline the dispatcher runs: resolve
// the inbound path, then rewrite it for the resolved service.
func resolveRewrite(t *testing.T, tbl *Table, method, path string) string {
	t.Helper()
	r, err := tbl.Resolve(path)
	require.NoError(t, err, path)
	return tbl.Rewrite(r, method, path)
}

func TestRewrite_VersionedPathPassesThrough(t *testing.T) {
	tbl := mustTable(t)
	got := resolveRewrite(t, tbl, http.MethodGet, "/api/v1/products/123")
	assert.Equal(t, "/api/v1/products/123", got)
}

func TestRewrite_LegacyAliases(t *testing.T) {
	tbl := mustTable(t)
	assert.Equal(t, "/api/v1/user/me", resolveRewrite(t, tbl, http.MethodGet, "/api/users/me"))
	assert.Equal(t, "/api/v1/user/me", resolveRewrite(t, tbl, http.MethodGet, "/api/me"))
}

func TestRewrite_MissingVersionInjected(t *testing.T) {
	tbl := mustTable(t)
	assert.Equal(t, "/api/v1/products/123", resolveRewrite(t, tbl, http.MethodGet, "/api/products/123"))
	assert.Equal(t, "/api/v1/checkout", resolveRewrite(t, tbl, http.MethodPost, "/api/checkout"))
}

func TestRewrite_DuplicateVersionCollapsed(t *testing.T) {
	tbl := mustTable(t)
	r, err := tbl.Resolve("/api/v1/products/1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/products/1", tbl.Rewrite(r, http.MethodGet, "/api/v1/v1/products/1"))
	assert.Equal(t, "/api/v1/products/1", tbl.Rewrite(r, http.MethodGet, "/api/v1/v1/v1/products/1"))
}

func TestRewrite_SpecialCaseMethodTemplates(t *testing.T) {
	tbl := mustTable(t)

	// Reads go to the public coupon listing, everything else keeps
	// the admin surface.
	assert.Equal(t, "/api/v1/coupons?active=true",
		resolveRewrite(t, tbl, http.MethodGet, "/api/v1/admin/coupons?active=true"))
	assert.Equal(t, "/api/v1/admin/coupons?active=true",
		resolveRewrite(t, tbl, http.MethodPost, "/api/v1/admin/coupons?active=true"))
	assert.Equal(t, "/api/v1/admin/coupons?active=true",
		resolveRewrite(t, tbl, http.MethodDelete, "/api/v1/admin/coupons?active=true"))

	// The unmatched tail survives template substitution.
	assert.Equal(t, "/api/v1/coupons/55",
		resolveRewrite(t, tbl, http.MethodGet, "/api/v1/admin/coupons/55"))

	// Unversioned hits of the same pattern normalize too.
	assert.Equal(t, "/api/v1/coupons",
		resolveRewrite(t, tbl, http.MethodGet, "/api/admin/coupons"))
	assert.Equal(t, "/api/v1/tags",
		resolveRewrite(t, tbl, http.MethodGet, "/api/tags"))
}

func TestRewrite_QueryStringPreservedVerbatim(t *testing.T) {
	tbl := mustTable(t)
	queries := []string{
		"active=true",
		"a=1&b=2&b=3",
		"q=%2Fapi%2Fv1&raw=x y", // already-encoded and odd input stays untouched
		"",
	}
	for _, q := range queries {
		p := "/api/products/9?" + q
		got := resolveRewrite(t, tbl, http.MethodGet, p)
		assert.Equal(t, "/api/v1/products/9?"+q, got, "query %q", q)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	tbl := mustTable(t)
	paths := []string{
		"/api/v1/products/123",
		"/api/products/123",
		"/api/users/me",
		"/api/me",
		"/api/v1/v1/products/7",
		"/api/v1/admin/coupons?active=true",
		"/api/admin/coupons/55",
		"/api/tags?sort=name",
		"/api/v1/admin/orders/55",
		"/api/checkout?fast=1",
	}
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		for _, p := range paths {
			r, err := tbl.Resolve(p)
			require.NoError(t, err, p)
			once := tbl.Rewrite(r, method, p)
			twice := tbl.Rewrite(r, method, once)
			assert.Equal(t, once, twice, "method=%s path=%s", method, p)
		}
	}
}
