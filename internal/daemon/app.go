// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/engine"
	xglog "github.com/ManuGH/timewarp/internal/log"
)

// App owns the long-lived runtime lifecycle (engine cadence, config watcher,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	engine       *engine.Engine
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil to disable reloads.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, eng *engine.Engine) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		engine:       eng,
		reloadSignal: syscall.SIGHUP,
	}
}

// Manager returns the server manager.
func (a *App) Manager() Manager { return a.manager }

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.engine == nil {
		return ErrMissingEngine
	}

	g, ctx := errgroup.WithContext(ctx)

	// Scheduler cadence; stops with ctx or engine.Close.
	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// Apply hot-reloadable settings on every config swap.
	if a.cfgHolder != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					a.cfgHolder.Stop()
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
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
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
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

// apply pushes the hot-reloadable parts of cfg into the running process.
// Clock, store and server settings need a restart.
func (a *App) apply(cfg config.AppConfig) {
	if err := a.engine.ApplyGuardPolicy(cfg.HTTP); err != nil {
		a.logger.Warn().Err(err).Str(xglog.FieldEvent, "guard.policy_apply_failed").Msg("failed to apply reloaded guard policy")
	} else {
		a.logger.Info().
			Str(xglog.FieldEvent, "guard.policy_applied").
			Str("policy", cfg.HTTP.Policy).
			Int("allowed_patterns", len(cfg.HTTP.AllowedPatterns)).
			Int("blocked_patterns", len(cfg.HTTP.BlockedPatterns)).
			Msg("guard policy reloaded")
	}
	if err := xglog.SetLevel(cfg.LogLevel); err != nil {
		a.logger.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("ignoring invalid reloaded log level")
	}
}
