// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/persistence"
	"github.com/ManuGH/timewarp/internal/persistence/sqlite"
	"github.com/ManuGH/timewarp/internal/version"
)

func newStoreCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Clock state store maintenance",
	}

	var path, mode string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check integrity of a SQLite clock state store",
		Long:  "Runs PRAGMA quick_check (quick) or integrity_check (full) against the store. Without --path the sqlite store from the configuration is used.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return usageError("invalid mode %q, use quick or full", mode)
			}

			target := strings.TrimSpace(path)
			if target == "" {
				cfg, err := config.NewLoader(resolveConfigPath(*configPath), version.Version).Load()
				if err != nil {
					return fmt.Errorf("configuration error: %w", err)
				}
				if cfg.Store.Backend != persistence.BackendSQLite {
					return usageError("configured store backend is %q; pass --path to verify a sqlite file", cfg.Store.Backend)
				}
				target = cfg.Store.Path
			}
			if _, err := os.Stat(target); err != nil {
				return fmt.Errorf("store %s: %w", target, err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Verifying integrity of %s (mode: %s)...\n", target, mode)
			issues, err := sqlite.VerifyIntegrity(target, mode)
			if err != nil {
				return fmt.Errorf("verification interrupted: %w", err)
			}
			if issues != nil {
				for _, issue := range issues {
					_, _ = fmt.Fprintf(out, "  - %s\n", issue)
				}
				return fmt.Errorf("corruption detected in %s (%d issues)", target, len(issues))
			}
			_, _ = fmt.Fprintln(out, "Integrity verified: ok")
			return nil
		},
	}
	verify.Flags().StringVar(&path, "path", "", "path to the SQLite store file")
	verify.Flags().StringVar(&mode, "mode", "quick", "verification mode: quick or full")

	cmd.AddCommand(verify)
	return cmd
}
