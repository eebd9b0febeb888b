// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import "github.com/rs/zerolog"

// Callback receives every message logged through a logger carrying a CallbackHook.
// It lets an embedding application route engine diagnostics into its own sink.
type Callback func(message string, level zerolog.Level)

// CallbackHook forwards log messages to a Callback.
type CallbackHook struct {
	fn Callback
}

// NewCallbackHook returns a hook forwarding to fn. A nil fn yields a no-op hook.
func NewCallbackHook(fn Callback) CallbackHook {
	return CallbackHook{fn: fn}
}

// Run implements zerolog.Hook.
func (h CallbackHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if h.fn == nil || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	if level < zerolog.GlobalLevel() {
		return
	}
	h.fn(msg, level)
}

// WithCallback returns l with fn attached as a hook. A nil fn returns l unchanged.
func WithCallback(l zerolog.Logger, fn Callback) zerolog.Logger {
	if fn == nil {
		return l
	}
	return l.Hook(NewCallbackHook(fn))
}
