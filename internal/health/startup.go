// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/persistence"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if _, err := cfg.Clock.Location(); err != nil {
		return fmt.Errorf("clock timezone check failed: %w", err)
	}

	if err := checkStore(logger, cfg.Store); err != nil {
		return fmt.Errorf("store check failed: %w", err)
	}

	if cfg.Clock.Production && cfg.Clock.ForceEnable && cfg.Clock.Rate != 1 {
		logger.Warn().
			Float64("rate", cfg.Clock.Rate).
			Msg("time acceleration force-enabled in production")
	}

	logger.Info().Msg("All startup checks passed")
	return nil
}

func checkStore(logger zerolog.Logger, st config.StoreConfig) error {
	switch strings.ToLower(st.Backend) {
	case persistence.BackendFile, persistence.BackendBadger:
		// Ensure existence with 0750
		if err := os.MkdirAll(st.Path, 0750); err != nil {
			return fmt.Errorf("failed to ensure store directory %s: %w", st.Path, err)
		}
		if err := checkDirWritable(st.Path); err != nil {
			return err
		}
	case persistence.BackendSQLite:
		if err := checkDirWritable(filepath.Dir(st.Path)); err != nil {
			return err
		}
	case persistence.BackendMemory:
		logger.Warn().
			Str("store_backend", st.Backend).
			Msg("clock state is kept in memory only and lost on restart")
		return nil
	default:
		return nil
	}

	tempDir := filepath.Clean(os.TempDir())
	storePath := filepath.Clean(st.Path)
	if tempDir != "." && (storePath == tempDir || strings.HasPrefix(storePath, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("store_path", st.Path).
			Msg("store is under temp; clock state may be lost on reboot")
	}
	logger.Info().Str("backend", st.Backend).Str("path", st.Path).Msg("Store location is writable")
	return nil
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)
	return nil
}
