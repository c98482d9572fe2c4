// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	hglog "github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/metrics"
	"github.com/ManuGH/hubgate/internal/validate"
)

// Editors fire several events per save; collapse them into one reload.
const reloadDebounce = 500 * time.Millisecond

// immutableField describes a config value that cannot change across a
// hot reload. Changing one requires a daemon restart because open
// listeners and stores are bound to it.
type immutableField struct {
	name string
	get  func(Config) string
}

var immutableFields = []immutableField{
	{"Listen", func(c Config) string { return c.Listen }},
	{"MetricsListen", func(c Config) string { return c.MetricsListen }},
	{"DataDir", func(c Config) string { return c.DataDir }},
	{"Cache.Backend", func(c Config) string { return c.Cache.Backend }},
	{"Catalog.Path", func(c Config) string { return c.Catalog.Path }},
	{"Usage.Path", func(c Config) string { return c.Usage.Path }},
}

// Holder serves the current configuration to the rest of the daemon and
// swaps it atomically on reload. Reloads come from the file watcher or
// from the admin endpoint.
type Holder struct {
	mu         sync.RWMutex
	current    Config
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- Config
}

// NewHolder creates a holder seeded with the startup configuration.
func NewHolder(initial Config, loader *Loader, configPath string) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     hglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the config file, then swaps it in. The
// swap is all-or-nothing: on validation failure or an immutable-field
// change the running config stays as it was.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		var verr validate.ValidationError
		if errors.As(err, &verr) {
			metrics.IncConfigValidationError()
		}
		metrics.IncConfigReload("error")
		h.logger.Error().Err(err).
			Str("event", "config.reload_failed").
			Msg("new configuration failed to load")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.RLock()
	oldCfg := h.current
	h.mu.RUnlock()

	if err := checkImmutable(oldCfg, newCfg); err != nil {
		metrics.IncConfigReload("rejected")
		h.logger.Error().Err(err).
			Str("event", "config.reload_rejected").
			Msg("new configuration changes immutable fields")
		return err
	}

	h.mu.Lock()
	h.current = newCfg
	h.mu.Unlock()

	metrics.IncConfigReload("success")
	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

// checkImmutable rejects changes to fields bound at startup.
func checkImmutable(old, newCfg Config) error {
	for _, f := range immutableFields {
		if f.get(old) != f.get(newCfg) {
			return fmt.Errorf("config reload: %s cannot change at runtime (restart required)", f.name)
		}
	}
	return nil
}

// StartWatcher begins watching the config file. With no config path the
// daemon runs on environment variables alone and there is nothing to
// watch.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("no config file, hot reload disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.watcher = watcher
	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file")

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			// Write covers in-place saves, Create covers the
			// rename-into-place pattern of most editors.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().
				Str("event", "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).
						Str("event", "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop closes the file watcher if one is running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener subscribes ch to successful reloads. The holder
// never closes the channel.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners fans the new config out without blocking; a listener
// that has fallen behind misses this round.
func (h *Holder) notifyListeners(newCfg Config) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("listener channel full, notification dropped")
		}
	}
}

// logChanges records which reloadable settings actually moved.
func (h *Holder) logChanges(old, newCfg Config) {
	if old.LogLevel != newCfg.LogLevel {
		h.logger.Info().
			Str("old", old.LogLevel).
			Str("new", newCfg.LogLevel).
			Msg("config changed: LogLevel")
	}
	if old.Hub.Endpoint != newCfg.Hub.Endpoint {
		h.logger.Info().
			Str("old", MaskURL(old.Hub.Endpoint)).
			Str("new", MaskURL(newCfg.Hub.Endpoint)).
			Msg("config changed: Hub.Endpoint")
	}
	if old.Inference.Endpoint != newCfg.Inference.Endpoint {
		h.logger.Info().
			Str("old", MaskURL(old.Inference.Endpoint)).
			Str("new", MaskURL(newCfg.Inference.Endpoint)).
			Msg("config changed: Inference.Endpoint")
	}
	if old.Refresh.Interval != newCfg.Refresh.Interval {
		h.logger.Info().
			Dur("old", old.Refresh.Interval).
			Dur("new", newCfg.Refresh.Interval).
			Msg("config changed: Refresh.Interval")
	}
	if len(old.Refresh.Models) != len(newCfg.Refresh.Models) {
		h.logger.Info().
			Int("old", len(old.Refresh.Models)).
			Int("new", len(newCfg.Refresh.Models)).
			Msg("config changed: Refresh.Models")
	}
	if old.RateLimit.Enabled != newCfg.RateLimit.Enabled {
		h.logger.Info().
			Bool("old", old.RateLimit.Enabled).
			Bool("new", newCfg.RateLimit.Enabled).
			Msg("config changed: RateLimit.Enabled")
	}
}
