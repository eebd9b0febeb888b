// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/daemon"
	"github.com/ManuGH/timewarp/internal/health"
	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/version"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(*configPath))
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	// Safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "timewarp",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "timewarp",
		Version: cfg.Version,
	})

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Msg("configuration loaded")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()
	if parent != nil {
		context.AfterFunc(parent, stop)
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
		return err
	}

	var reloadFrom *config.Loader
	if configPath != "" {
		reloadFrom = loader
	}
	app, err := daemon.Bootstrap(ctx, cfg, reloadFrom)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.bootstrap_failed").Msg("failed to start daemon")
		return err
	}

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.exit_error").Msg("daemon exited with error")
		return err
	}
	logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return nil
}
