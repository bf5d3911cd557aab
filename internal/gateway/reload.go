package gateway

import (
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vendhub/edge-gateway/internal/config"
	"github.com/vendhub/edge-gateway/internal/route"
)

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

// installRoutesAutoReload watches the config file and swaps in a fresh
// route table when it changes. A reload that fails to load or validate
// is logged and dropped; the serving table is never replaced with a
// broken one. Editors replace files rather than write in place, so the
// watch sits on the parent directory and filters by file name.
func installRoutesAutoReload(cfgPath string, cfg *config.Config, st *state) (io.Closer, error) {
	if cfg == nil || st == nil {
		return nil, nil
	}
	if !cfg.Routing.AutoReload.Enabled {
		return nil, nil
	}
	cfgPath = strings.TrimSpace(cfgPath)
	if cfgPath == "" {
		return nil, nil
	}

	debounce := time.Duration(cfg.Routing.AutoReload.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(cfgPath)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	base := filepath.Base(cfgPath)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		resetTimer := func() {
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			timerC = timer.C
		}

		for {
			select {
			case <-stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerC:
				timerC = nil
				reloadRoutes(cfgPath, st)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("routes auto-reload watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if shouldTriggerRouteReload(evt, base) {
					resetTimer()
				}
			}
		}
	}()

	log.Printf("routes auto-reload enabled: file=%q debounce_ms=%d", cfgPath, debounce.Milliseconds())
	return closerFunc(func() error {
		close(stopCh)
		_ = watcher.Close()
		<-doneCh
		return nil
	}), nil
}

func reloadRoutes(cfgPath string, st *state) {
	next, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("reload failed (routes auto): %v", err)
		return
	}
	tbl, err := route.NewTable(next)
	if err != nil {
		log.Printf("reload failed (routes auto): %v", err)
		return
	}
	st.SwapTable(tbl)
	log.Printf("reload ok (routes auto): file=%q services=%d", cfgPath, len(tbl.Services()))
}

func shouldTriggerRouteReload(evt fsnotify.Event, base string) bool {
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Base(evt.Name) == base
}
