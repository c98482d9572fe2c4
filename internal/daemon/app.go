// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/hubgate/internal/config"
	"github.com/ManuGH/hubgate/internal/jobs"
)

// Refresher triggers a catalog refresh. The API server implements this;
// the interface keeps the daemon decoupled from it.
type Refresher interface {
	RunRefresh(ctx context.Context) (*jobs.Status, error)
}

// App owns the long-lived runtime lifecycle (config watcher, reload
// wiring, the refresh scheduler) and delegates server management to
// Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	refresher    Refresher
	reloadSignal os.Signal
}

// NewApp creates the app orchestrator. holder and refresher may be nil;
// the corresponding subsystems are then skipped.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, refresher Refresher) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		holder:       holder,
		refresher:    refresher,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all background subsystems and blocks until ctx is cancelled
// or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// The watcher is best-effort: startup must not fail because inotify
	// is unavailable.
	if a.holder != nil {
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().
				Err(err).
				Str("event", "config.watcher_start_failed").
				Msg("failed to start config watcher")
		}
	}

	// SIGHUP trigger for manual reload.
	if a.holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.holder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Refresh scheduler. Reloads can change the interval, so the ticker
	// follows config swaps.
	if a.refresher != nil {
		g.Go(func() error {
			a.runRefreshLoop(ctx)
			return nil
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// runRefreshLoop fires a refresh every Refresh.Interval. A zero interval
// disables the loop until a reload sets one; overlapping runs are
// rejected by the refresher itself.
func (a *App) runRefreshLoop(ctx context.Context) {
	interval := a.refreshInterval()

	timer := time.NewTimer(intervalOrPoll(interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if current := a.refreshInterval(); current != interval {
			a.logger.Info().
				Dur("old", interval).
				Dur("new", current).
				Str("event", "refresh.interval_changed").
				Msg("refresh interval updated")
			interval = current
		}

		if interval > 0 {
			if _, err := a.refresher.RunRefresh(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error().
					Err(err).
					Str("event", "refresh.scheduled_failed").
					Msg("scheduled refresh failed")
			}
		}

		timer.Reset(intervalOrPoll(interval))
	}
}

func (a *App) refreshInterval() time.Duration {
	if a.holder == nil {
		return 0
	}
	return a.holder.Get().Refresh.Interval
}

// intervalOrPoll keeps the loop alive while refreshes are disabled, so a
// reload that enables them takes effect without restart.
func intervalOrPoll(interval time.Duration) time.Duration {
	if interval <= 0 {
		return time.Minute
	}
	return interval
}
