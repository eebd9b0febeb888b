// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	ErrMissingLogger     = errors.New("logger is required")
	ErrMissingAPIHandler = errors.New("API handler is required")
	ErrMissingManager    = errors.New("manager is required")
	ErrMissingEngine     = errors.New("engine is required")

	// ErrManagerNotStarted is returned by Shutdown before Start.
	ErrManagerNotStarted = errors.New("manager not started")
	// ErrManagerStarted is returned by a second Start.
	ErrManagerStarted = errors.New("manager already started")
	// ErrServerStartFailed wraps listen errors of the control API.
	ErrServerStartFailed = errors.New("server failed to start")
)
