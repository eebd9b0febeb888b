// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command timewarpd runs the virtual time daemon and its maintenance tools.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/version"
)

const envConfigPath = "TIMEWARP_CONFIG"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "timewarpd",
		Short:         "Virtual time daemon",
		Long:          "timewarpd serves a controllable virtual clock, boundary events, virtual timers and an outbound request guard.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML); defaults to $"+envConfigPath)

	root.AddCommand(
		newServeCmd(&configPath),
		newVersionCmd(),
		newConfigCmd(&configPath),
		newStoreCmd(&configPath),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (commit: %s, built: %s, debug: %t)\n",
				version.Version, version.Commit, version.Date, version.DebugBuild)
		},
	}
}

func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString(envConfigPath, ""))
}
