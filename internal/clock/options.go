// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/persistence"
	"github.com/ManuGH/timewarp/internal/resilience"
)

// DefaultPersistKey is the store key used when Config.PersistKey is empty.
const DefaultPersistKey = "timewarp.clock"

// Config is the initialization surface of the clock.
type Config struct {
	// Rate is the requested clock rate (1 = real speed).
	Rate float64
	// Production marks a production deployment where acceleration is refused
	// unless ForceEnable is set.
	Production bool
	// ForceEnable allows rates other than 1 in production and release builds.
	ForceEnable bool
	// AppVersion stamps persisted records; records from other versions are discarded.
	AppVersion string
	// DebugBuild reports a debug build. Release builds pin the rate to 1
	// unless ForceEnable is set.
	DebugBuild bool
	// PersistKey is the key used with the Store.
	PersistKey string
}

// Option customizes a Clock.
type Option func(*Clock)

// WithRealClock replaces the host clock, mainly for tests.
func WithRealClock(rc clockwork.Clock) Option {
	return func(c *Clock) {
		if rc != nil {
			c.real = rc
		}
	}
}

// WithStore enables persistence of the clock state.
func WithStore(s persistence.Store) Option {
	return func(c *Clock) { c.store = s }
}

// WithLogger sets the logger used for clock diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Clock) { c.logger = l }
}

// WithBreaker overrides the circuit breaker guarding store saves.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Clock) {
		if cb != nil {
			c.breaker = cb
		}
	}
}
