package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/vendhub/edge-gateway/internal/config"
	"github.com/vendhub/edge-gateway/internal/proxy"
	"github.com/vendhub/edge-gateway/internal/route"
)

func writeGatewayConfig(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

const reloadConfigOneService = `
services:
  - name: product
    base_url: http://127.0.0.1:9001
    prefixes:
      - /api/products
`

const reloadConfigTwoServices = `
services:
  - name: product
    base_url: http://127.0.0.1:9001
    prefixes:
      - /api/products
  - name: user
    base_url: http://127.0.0.1:9002
    prefixes:
      - /api/user
`

func newReloadState(t *testing.T, cfgPath string) *state {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	tbl, err := route.NewTable(cfg)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return newState(cfg, tbl, &proxy.Client{HTTP: &http.Client{}})
}

func TestReloadRoutes_SwapsTable(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gateway.yaml")
	writeGatewayConfig(t, cfgPath, reloadConfigOneService)
	st := newReloadState(t, cfgPath)

	if got := len(st.Table().Services()); got != 1 {
		t.Fatalf("expected 1 service before reload, got=%d", got)
	}

	writeGatewayConfig(t, cfgPath, reloadConfigTwoServices)
	reloadRoutes(cfgPath, st)

	if got := len(st.Table().Services()); got != 2 {
		t.Fatalf("expected 2 services after reload, got=%d", got)
	}
	if _, err := st.Table().Resolve("/api/user/me"); err != nil {
		t.Fatalf("new route should resolve after reload: %v", err)
	}
}

func TestReloadRoutes_KeepsServingTableOnBrokenConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gateway.yaml")
	writeGatewayConfig(t, cfgPath, reloadConfigTwoServices)
	st := newReloadState(t, cfgPath)

	writeGatewayConfig(t, cfgPath, "services: [:::not yaml")
	reloadRoutes(cfgPath, st)

	if got := len(st.Table().Services()); got != 2 {
		t.Fatalf("broken config must not replace the serving table, got=%d services", got)
	}
}

func TestReloadRoutes_RejectsInvalidTable(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gateway.yaml")
	writeGatewayConfig(t, cfgPath, reloadConfigOneService)
	st := newReloadState(t, cfgPath)

	// duplicate prefix owners fail table validation, not yaml parsing
	writeGatewayConfig(t, cfgPath, `
services:
  - name: a
    base_url: http://127.0.0.1:9001
    prefixes:
      - /api/products
  - name: b
    base_url: http://127.0.0.1:9002
    prefixes:
      - /api/products
`)
	reloadRoutes(cfgPath, st)

	if got := len(st.Table().Services()); got != 1 {
		t.Fatalf("invalid table must not be swapped in, got=%d services", got)
	}
}

func TestShouldTriggerRouteReload(t *testing.T) {
	t.Run("other file ignored", func(t *testing.T) {
		if shouldTriggerRouteReload(fsnotify.Event{Name: "/etc/edge/other.yaml", Op: fsnotify.Write}, "gateway.yaml") {
			t.Fatalf("expected false for unrelated file")
		}
	})

	t.Run("unsupported op", func(t *testing.T) {
		if shouldTriggerRouteReload(fsnotify.Event{Name: "/etc/edge/gateway.yaml", Op: fsnotify.Chmod}, "gateway.yaml") {
			t.Fatalf("expected false for chmod")
		}
	})

	t.Run("config write", func(t *testing.T) {
		if !shouldTriggerRouteReload(fsnotify.Event{Name: "/etc/edge/gateway.yaml", Op: fsnotify.Write}, "gateway.yaml") {
			t.Fatalf("expected true for config write")
		}
	})

	t.Run("atomic replace", func(t *testing.T) {
		if !shouldTriggerRouteReload(fsnotify.Event{Name: "/etc/edge/gateway.yaml", Op: fsnotify.Create}, "gateway.yaml") {
			t.Fatalf("expected true for create")
		}
	})
}

func TestInstallRoutesAutoReload_DisabledIsNoop(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gateway.yaml")
	writeGatewayConfig(t, cfgPath, reloadConfigOneService)
	st := newReloadState(t, cfgPath)

	closer, err := installRoutesAutoReload(cfgPath, st.cfg, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer != nil {
		t.Fatalf("expected nil closer when auto reload is disabled")
	}
}
