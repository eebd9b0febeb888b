// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package guard decides whether outbound requests may be sent while the
// virtual clock runs at a rate other than real time.
package guard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/metrics"
)

// Mode is the fallback policy for paths no pattern decides.
type Mode string

const (
	ModeAllow    Mode = "allow"
	ModeBlock    Mode = "block"
	ModeThrottle Mode = "throttle"
)

// Denial reasons.
const (
	ReasonBlockedPattern     = "blocked pattern"
	ReasonAccelerationActive = "acceleration active"
	ReasonThrottleExceeded   = "throttle limit exceeded"
)

const (
	// ThrottleWindow is the fixed real-time window of throttle mode.
	ThrottleWindow = 60 * time.Second
	// DefaultThrottleLimit is the per-window allowance when none is configured.
	DefaultThrottleLimit = 60
)

var (
	ErrUnknownMode          = errors.New("guard: unknown policy mode")
	ErrInvalidThrottleLimit = errors.New("guard: throttle limit must not be negative")
)

// ParseMode parses "allow", "block" or "throttle" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAllow, ModeBlock, ModeThrottle:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Policy configures a Guard. An empty Mode means ModeBlock. ThrottleLimit is
// the number of requests allowed per ThrottleWindow in throttle mode; zero
// selects DefaultThrottleLimit and negative values are rejected.
type Policy struct {
	Mode            Mode
	AllowedPatterns []string
	BlockedPatterns []string
	ThrottleLimit   int
}

// Validate reports an unknown mode or a negative throttle limit.
func (p Policy) Validate() error {
	if p.Mode != "" {
		if _, err := ParseMode(string(p.Mode)); err != nil {
			return err
		}
	}
	if p.ThrottleLimit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThrottleLimit, p.ThrottleLimit)
	}
	return nil
}

// Decision is the outcome of Evaluate. Reason is empty when allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// RateSource reports the configured clock rate. *clock.Clock satisfies it.
type RateSource interface {
	Rate() float64
}

// Guard evaluates request paths against a Policy.
type Guard struct {
	rates  RateSource
	real   clockwork.Clock
	logger zerolog.Logger

	mu          sync.Mutex
	policy      Policy
	windowStart time.Time
	count       int
}

// Option customizes a Guard.
type Option func(*Guard)

// WithRealClock sets the clock measuring the throttle window.
func WithRealClock(c clockwork.Clock) Option {
	return func(g *Guard) {
		if c != nil {
			g.real = c
		}
	}
}

// WithLogger sets the guard logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a Guard reading the clock rate from rates. It fails when policy
// does not validate.
func New(rates RateSource, policy Policy, opts ...Option) (*Guard, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{
		rates:  rates,
		real:   clockwork.NewRealClock(),
		logger: xglog.WithComponent("guard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.policy = normalize(policy)
	g.windowStart = g.real.Now()
	return g, nil
}

func normalize(p Policy) Policy {
	if p.Mode == "" {
		p.Mode = ModeBlock
	} else if m, err := ParseMode(string(p.Mode)); err == nil {
		p.Mode = m
	}
	if p.ThrottleLimit == 0 {
		p.ThrottleLimit = DefaultThrottleLimit
	}
	p.AllowedPatterns = append([]string(nil), p.AllowedPatterns...)
	p.BlockedPatterns = append([]string(nil), p.BlockedPatterns...)
	return p
}

// SetPolicy replaces the policy and starts a fresh throttle window. An
// invalid policy is rejected and the current one stays in effect.
func (g *Guard) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = normalize(p)

	g.mu.Lock()
	g.policy = p
	g.windowStart = g.real.Now()
	g.count = 0
	g.mu.Unlock()

	g.logger.Info().
		Str(xglog.FieldEvent, "guard.policy_updated").
		Str("mode", string(p.Mode)).
		Int("allowed_patterns", len(p.AllowedPatterns)).
		Int("blocked_patterns", len(p.BlockedPatterns)).
		Int("throttle_limit", p.ThrottleLimit).
		Msg("request guard policy updated")
	return nil
}

// Policy returns a copy of the current policy.
func (g *Guard) Policy() Policy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return normalize(g.policy)
}

// Evaluate decides whether a request to path may proceed. Blocked patterns
// win over allowed patterns, which win over the policy mode.
func (g *Guard) Evaluate(path string) Decision {
	d := g.evaluate(path)
	metrics.IncGuardDecision(d.Allowed, d.Reason)
	if !d.Allowed {
		g.logger.Debug().
			Str(xglog.FieldEvent, "guard.denied").
			Str(xglog.FieldPath, path).
			Str("reason", d.Reason).
			Msg("outbound request denied")
	}
	return d
}

func (g *Guard) evaluate(path string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := matchAny(g.policy.BlockedPatterns, path); ok {
		return Decision{Reason: ReasonBlockedPattern}
	}
	if _, ok := matchAny(g.policy.AllowedPatterns, path); ok {
		return Decision{Allowed: true}
	}

	switch g.policy.Mode {
	case ModeAllow:
		return Decision{Allowed: true}
	case ModeThrottle:
		now := g.real.Now()
		if now.Sub(g.windowStart) >= ThrottleWindow {
			g.windowStart = now
			g.count = 0
		}
		if g.count < g.policy.ThrottleLimit {
			g.count++
			return Decision{Allowed: true}
		}
		return Decision{Reason: ReasonThrottleExceeded}
	default:
		if g.rates.Rate() == 1 {
			return Decision{Allowed: true}
		}
		return Decision{Reason: ReasonAccelerationActive}
	}
}
