// SPDX-License-Identifier: MIT

// Package validate collects field-level configuration errors so that a
// single load reports every problem at once.
package validate

import (
	"fmt"
	"math"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is one rejected field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError is returned by Validator.Err and lists every failed field.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual field errors.
func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, fe := range e.errors {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator accumulates field errors. The zero value is ready to use.
type Validator struct {
	errors []Error
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) failf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

// IsValid reports whether no error was recorded.
func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

// Errors returns the recorded errors in insertion order.
func (v *Validator) Errors() []Error { return v.errors }

// Err returns nil or a ValidationError holding a snapshot of the errors.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf rejects values outside allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.failf(field, value, "value must be one of %v, got %q", allowed, value)
	}
}

// Range rejects integers outside [lo, hi].
func (v *Validator) Range(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.failf(field, value, "value must be between %d and %d, got %d", lo, hi, value)
	}
}

// Positive rejects values <= 0.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.failf(field, value, "value must be positive, got %d", value)
	}
}

// NonNegative rejects values < 0.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.failf(field, value, "value cannot be negative, got %d", value)
	}
}

// FloatRange rejects floats outside [lo, hi]. NaN is never in range.
func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	if math.IsNaN(value) || value < lo || value > hi {
		v.failf(field, value, "value must be between %g and %g, got %g", lo, hi, value)
	}
}

// PositiveDuration rejects zero and negative durations.
func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.failf(field, d, "duration must be positive, got %s", d)
	}
}

// Port rejects ports outside 1-65535.
func (v *Validator) Port(field string, port int) {
	if port < 1 || port > 65535 {
		v.failf(field, port, "port must be between 1 and 65535, got %d", port)
	}
}

// ListenAddr checks a "host:port" address with a numeric, non-zero port.
// The host may be empty.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.failf(field, addr, "invalid listen address: %v", err)
		return
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		v.failf(field, addr, "invalid port %q", port)
		return
	}
	v.Port(field, p)
}

// Timezone checks an IANA zone name. Empty means the host zone.
func (v *Validator) Timezone(field, name string) {
	if name == "" {
		return
	}
	if _, err := time.LoadLocation(name); err != nil {
		v.failf(field, name, "unknown time zone: %v", err)
	}
}

// LogLevels lists the accepted log level names.
var LogLevels = []string{"debug", "info", "warn", "error"}

// LogLevel checks a log level name, case-insensitively.
func (v *Validator) LogLevel(field, level string) {
	if !slices.Contains(LogLevels, strings.ToLower(level)) {
		v.failf(field, level, "must be one of %s", strings.Join(LogLevels, ", "))
	}
}
