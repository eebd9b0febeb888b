// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resilience protects best-effort collaborators (such as the clock
// state store) from being hammered while they are failing.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ManuGH/timewarp/internal/metrics"
)

// State of a CircuitBreaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	defaultThreshold    = 3
	defaultResetTimeout = 30 * time.Second
)

// ErrCircuitOpen is returned without calling the function while the breaker
// is open or a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after threshold consecutive failures and rejects
// calls for resetTimeout. It then admits one probe: success closes it,
// failure opens it again.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clk          clockwork.Clock
	catchPanics  bool

	mu       sync.Mutex
	state    State
	streak   int
	openedAt time.Time
	inFlight bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock sets the clock used for the open period. nil is ignored.
func WithClock(c clockwork.Clock) Option {
	return func(cb *CircuitBreaker) {
		if c != nil {
			cb.clk = c
		}
	}
}

// WithPanicRecovery counts a panic in the protected function as a failure
// before re-panicking.
func WithPanicRecovery(enabled bool) Option {
	return func(cb *CircuitBreaker) { cb.catchPanics = enabled }
}

// NewCircuitBreaker returns a closed breaker. name labels its metrics.
// Non-positive threshold and resetTimeout fall back to 3 and 30s.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		threshold:    max(threshold, 0),
		resetTimeout: resetTimeout,
		clk:          clockwork.NewRealClock(),
		state:        StateClosed,
	}
	if cb.threshold == 0 {
		cb.threshold = defaultThreshold
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = defaultResetTimeout
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(name, string(StateClosed))
	return cb
}

// Execute calls fn unless the breaker rejects it, and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}
	if cb.catchPanics {
		defer func() {
			if r := recover(); r != nil {
				cb.record(false)
				panic(r)
			}
		}()
	}
	err := fn()
	cb.record(err == nil)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.clk.Since(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.setState(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.inFlight {
			return false
		}
		cb.inFlight = true
	}
	return true
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.inFlight = false
	if ok {
		cb.streak = 0
		cb.setState(StateClosed)
		return
	}

	cb.streak++
	switch {
	case cb.state == StateHalfOpen:
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.setState(StateOpen)
	case cb.state == StateClosed && cb.streak >= cb.threshold:
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	if s == StateOpen {
		cb.openedAt = cb.clk.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(s))
}
