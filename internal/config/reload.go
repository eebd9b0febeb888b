// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/timewarp/internal/log"
)

// reloadDebounce coalesces bursts of file events into one reload.
const reloadDebounce = 500 * time.Millisecond

// ConfigHolder owns the live configuration and swaps it atomically on reload.
// A reload that fails to load or validate leaves the current value in place.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig

	loader *Loader
	path   string
	logger zerolog.Logger

	watchMu sync.Mutex
	watcher *fsnotify.Watcher

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewConfigHolder wraps initial. path is watched by StartWatcher; an empty
// path disables watching.
func NewConfigHolder(initial AppConfig, loader *Loader, path string) *ConfigHolder {
	return &ConfigHolder{
		current: initial,
		loader:  loader,
		path:    path,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads file and environment again and, when the result validates,
// publishes it to the registered listeners.
func (h *ConfigHolder) Reload(_ context.Context) error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("configuration rejected, keeping current")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.report(prev, next)
	h.publish(next)
	return nil
}

// RegisterListener subscribes ch to successful reloads. Sends never block:
// a listener that is not ready misses that reload.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, ch)
	h.listenersMu.Unlock()
}

func (h *ConfigHolder) publish(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for i, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Int("listener", i).Str("event", "config.listener_skip").Msg("listener busy, reload not delivered")
		}
	}
}

// StartWatcher reloads on changes to the config file until ctx is done or
// Stop is called. The parent directory is watched so that editors which
// replace the file through a rename are still noticed.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", h.path, err)
	}

	h.watchMu.Lock()
	h.watcher = w
	h.watchMu.Unlock()

	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.path).Msg("watching config file")
	go h.watch(ctx, w)
	return nil
}

func (h *ConfigHolder) watch(ctx context.Context, w *fsnotify.Watcher) {
	target := filepath.Clean(h.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = w.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				// Errors are logged by Reload.
				_ = h.Reload(ctx)
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop closes the watcher, if any.
func (h *ConfigHolder) Stop() {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		_ = h.watcher.Close()
		h.watcher = nil
	}
}

// report logs what changed. Only the guard policy and the log level are
// applied at runtime; other sections are flagged as needing a restart.
func (h *ConfigHolder) report(prev, next AppConfig) {
	if diff := cmp.Diff(prev.HTTP, next.HTTP); diff != "" {
		h.logger.Info().Str("section", "http").Str("diff", diff).Msg("guard policy changed")
	}
	if prev.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", prev.LogLevel).Str("new", next.LogLevel).Msg("log level changed")
	}

	restart := map[string]bool{
		"clock":     !cmp.Equal(prev.Clock, next.Clock),
		"store":     !cmp.Equal(prev.Store, next.Store),
		"server":    !cmp.Equal(prev.Server, next.Server),
		"telemetry": !cmp.Equal(prev.Telemetry, next.Telemetry),
	}
	for section, changed := range restart {
		if changed {
			h.logger.Warn().Str("event", "config.restart_required").Str("section", section).
				Msg("setting changed, takes effect after restart")
		}
	}
	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
}
