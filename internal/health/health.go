// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the daemon.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ManuGH/timewarp/internal/clock"
	"github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/persistence"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    int64                  `json:"uptime_seconds"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	clk      clockwork.Clock
	started  time.Time
	checkers []Checker
}

// NewManager creates a new health check manager. A nil clk uses the host clock.
func NewManager(version string, clk clockwork.Clock) *Manager {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Manager{
		version:  version,
		clk:      clk,
		started:  clk.Now(),
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// run executes every checker and folds the results into one status.
func (m *Manager) run(ctx context.Context) (map[string]CheckResult, Status) {
	checks := make(map[string]CheckResult, len(m.checkers))
	status := StatusHealthy
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		checks[checker.Name()] = result
		switch {
		case result.Status == StatusUnhealthy:
			status = StatusUnhealthy
		case result.Status == StatusDegraded && status == StatusHealthy:
			status = StatusDegraded
		}
	}
	return checks, status
}

// Health performs a liveness check. Component checks only run when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	now := m.clk.Now()
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: now,
		Uptime:    int64(now.Sub(m.started) / time.Second),
	}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.run(ctx)
	}
	return resp
}

// Ready performs a readiness check. Only unhealthy components make the
// daemon unready; degraded ones are reported.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: m.clk.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks, resp.Status = m.run(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth handles HTTP liveness requests. It always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness requests: 200 when ready, 503 otherwise.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// ClockSource is the part of the virtual clock the clock check reads.
type ClockSource interface {
	State() clock.State
	Rate() float64
}

// ClockChecker reports the virtual clock state. A paused clock is degraded
// since virtual time is not advancing.
type ClockChecker struct {
	clock ClockSource
}

// NewClockChecker creates a checker for the virtual clock.
func NewClockChecker(c ClockSource) *ClockChecker {
	return &ClockChecker{clock: c}
}

func (c *ClockChecker) Name() string {
	return "clock"
}

func (c *ClockChecker) Check(_ context.Context) CheckResult {
	state := c.clock.State()
	msg := fmt.Sprintf("%s at rate %g", state, c.clock.Rate())
	if state == clock.StatePaused {
		return CheckResult{Status: StatusDegraded, Message: msg}
	}
	return CheckResult{Status: StatusHealthy, Message: msg}
}

// StoreChecker reads the clock state record from the persistence backend.
// Failures are degraded: the clock keeps running without persistence.
type StoreChecker struct {
	store   persistence.Store
	key     string
	timeout time.Duration
}

// NewStoreChecker creates a checker for store. A nil store reports healthy.
func NewStoreChecker(store persistence.Store, key string) *StoreChecker {
	return &StoreChecker{store: store, key: key, timeout: 2 * time.Second}
}

func (c *StoreChecker) Name() string {
	return "store"
}

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	if c.store == nil {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, found, err := c.store.Load(ctx, c.key)
	if err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   err.Error(),
			Message: "clock state cannot be read",
		}
	}
	if !found {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "reachable, no clock state saved yet",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "reachable, clock state present",
	}
}
