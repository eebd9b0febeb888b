// SPDX-License-Identifier: MIT

// Package daemon provides the core daemon bootstrapping and lifecycle management.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/timewarp/internal/api"
	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/engine"
	"github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/telemetry"
	"github.com/ManuGH/timewarp/internal/version"
)

// Bootstrap wires telemetry, the time engine, the control API and the
// server manager from a loaded config. Engine and telemetry are torn down
// by manager shutdown hooks. loader may be nil to disable config reloads.
func Bootstrap(ctx context.Context, cfg config.AppConfig, loader *config.Loader, engineOpts ...engine.Option) (*App, error) {
	logger := log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "daemon.starting").
		Str(log.FieldVersion, cfg.Version).
		Str("commit", version.Commit).
		Bool("debug_build", version.DebugBuild).
		Str("listen", cfg.Server.Listen).
		Msg("Starting timewarp daemon")

	provider, err := initTelemetry(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry initialization failed, continuing without tracing")
	}

	eng, err := engine.New(ctx, cfg, engineOpts...)
	if err != nil {
		if provider != nil {
			_ = provider.Shutdown(ctx)
		}
		return nil, fmt.Errorf("create engine: %w", err)
	}

	var apiOpts []api.Option
	if cfg.Telemetry.Enabled {
		apiOpts = append(apiOpts, api.WithTracing(cfg.Telemetry.ServiceName))
	}
	srv := api.New(eng, cfg.Server, apiOpts...)

	mgr, err := NewManager(cfg.Server, Deps{Logger: logger, APIHandler: srv})
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	if provider != nil {
		mgr.RegisterShutdownHook("telemetry", provider.Shutdown)
	}
	// Registered last so it runs first: timers stop before tracing goes away.
	mgr.RegisterShutdownHook("engine", func(context.Context) error { return eng.Close() })

	var holder *config.ConfigHolder
	if loader != nil {
		holder = config.NewConfigHolder(cfg, loader, loader.Path())
	}
	return NewApp(logger, mgr, holder, eng), nil
}

func initTelemetry(ctx context.Context, cfg config.AppConfig) (*telemetry.Provider, error) {
	if !cfg.Telemetry.Enabled {
		return nil, nil
	}
	telCfg := telemetry.FromAppConfig(cfg, version.DebugBuild)
	provider, err := telemetry.NewProvider(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	logger := log.WithComponent("daemon")
	logger.Info().
		Str("service", telCfg.ServiceName).
		Str("endpoint", telCfg.Endpoint).
		Float64("sampling_rate", telCfg.SamplingRate).
		Msg("Telemetry initialized")
	return provider, nil
}

// WaitForShutdown returns a context cancelled on interrupt or termination signals.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
