// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"errors"
	"fmt"
)

// ErrConfiguration classifies initialization failures caused by an unsafe
// configuration. Use errors.Is(err, ErrConfiguration).
var ErrConfiguration = errors.New("clock configuration error")

// ConfigurationError is returned by New when time acceleration is requested
// in production without force_enable. The engine is not usable afterwards.
type ConfigurationError struct {
	Rate   float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("clock: %s (rate %g)", e.Reason, e.Rate)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
