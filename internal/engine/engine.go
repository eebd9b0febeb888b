// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine wires the virtual clock, the boundary event scheduler, the
// virtual timer factory and the outbound request guard into one handle that
// is constructed once per process from the application config.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/clock"
	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/events"
	"github.com/ManuGH/timewarp/internal/guard"
	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/persistence"
	"github.com/ManuGH/timewarp/internal/version"
	"github.com/ManuGH/timewarp/internal/vtimer"
)

var (
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("engine: closed")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine: already started")
)

// Engine owns the time-warp components for one process.
type Engine struct {
	cfg    config.AppConfig
	real   clockwork.Clock
	logCb  xglog.Callback
	debug  bool
	logger zerolog.Logger

	store     persistence.Store
	ownsStore bool

	clock     *clock.Clock
	scheduler *events.Scheduler
	timers    *vtimer.Factory
	guard     *guard.Guard

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRealClock replaces the host clock for every component.
func WithRealClock(rc clockwork.Clock) Option {
	return func(e *Engine) {
		if rc != nil {
			e.real = rc
		}
	}
}

// WithStore uses s instead of the backend named in the config. The caller
// keeps ownership: Close does not close s.
func WithStore(s persistence.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogCallback forwards every engine log line to fn.
func WithLogCallback(fn xglog.Callback) Option {
	return func(e *Engine) { e.logCb = fn }
}

// WithDebugBuild overrides the build mode reported by the version package.
func WithDebugBuild(debug bool) Option {
	return func(e *Engine) { e.debug = debug }
}

// New builds the engine from cfg. The store named by cfg.Store is opened
// unless WithStore was given.
func New(ctx context.Context, cfg config.AppConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:   cfg,
		real:  clockwork.NewRealClock(),
		debug: version.DebugBuild,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.componentLogger("engine")

	loc, err := cfg.Clock.Location()
	if err != nil {
		return nil, fmt.Errorf("engine: clock timezone: %w", err)
	}
	policy, err := GuardPolicy(cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("engine: guard policy: %w", err)
	}

	if e.store == nil {
		e.store, err = persistence.Open(ctx, persistence.Config{
			Backend:   cfg.Store.Backend,
			Path:      cfg.Store.Path,
			RedisAddr: cfg.Store.RedisAddr,
			RedisDB:   cfg.Store.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: open store: %w", err)
		}
		e.ownsStore = e.store != nil
	}

	clockOpts := []clock.Option{
		clock.WithRealClock(e.real),
		clock.WithLogger(e.componentLogger("clock")),
	}
	if e.store != nil {
		clockOpts = append(clockOpts, clock.WithStore(e.store))
	}
	e.clock, err = clock.New(clock.Config{
		Rate:        cfg.Clock.Rate,
		Production:  cfg.Clock.Production,
		ForceEnable: cfg.Clock.ForceEnable,
		AppVersion:  cfg.Version,
		DebugBuild:  e.debug,
		PersistKey:  cfg.Store.Key,
	}, clockOpts...)
	if err != nil {
		e.closeStore()
		return nil, err
	}

	e.scheduler = events.NewScheduler(e.clock,
		events.WithLocation(loc),
		events.WithInterval(cfg.Clock.CheckInterval),
		events.WithRealClock(e.real),
		events.WithLogger(e.componentLogger("events")),
	)
	e.timers = vtimer.NewFactory(e.clock, vtimer.WithLogger(e.componentLogger("vtimer")))
	e.guard, err = guard.New(e.clock, policy,
		guard.WithRealClock(e.real),
		guard.WithLogger(e.componentLogger("guard")),
	)
	if err != nil {
		_ = e.closeStore()
		return nil, fmt.Errorf("engine: guard policy: %w", err)
	}

	e.logger.Info().
		Str(xglog.FieldEvent, "engine.created").
		Str("store", cfg.Store.Backend).
		Str("location", loc.String()).
		Bool("debug_build", e.debug).
		Msg("time engine created")

	return e, nil
}

func (e *Engine) componentLogger(name string) zerolog.Logger {
	return xglog.WithCallback(xglog.WithComponent(name), e.logCb)
}

// Start runs the scheduler cadence until ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go func() {
		defer close(e.done)
		_ = e.scheduler.Run(runCtx)
	}()
	return nil
}

// Close cancels all live timers, stops the scheduler, saves the current clock
// state and closes the store the engine opened. It is safe to call more than
// once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	n := e.timers.CancelAll()
	e.clock.Checkpoint()

	err := e.closeStore()
	e.logger.Info().
		Str(xglog.FieldEvent, "engine.closed").
		Int("timers_cancelled", n).
		Msg("time engine closed")
	return err
}

func (e *Engine) closeStore() error {
	if !e.ownsStore || e.store == nil {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("engine: close store: %w", err)
	}
	return nil
}

// ApplyGuardPolicy replaces the guard policy from reloaded HTTP settings.
// The throttle window restarts.
func (e *Engine) ApplyGuardPolicy(h config.HTTPConfig) error {
	p, err := GuardPolicy(h)
	if err != nil {
		return err
	}
	return e.guard.SetPolicy(p)
}

// GuardPolicy converts HTTP config into a guard policy.
func GuardPolicy(h config.HTTPConfig) (guard.Policy, error) {
	mode, err := guard.ParseMode(h.Policy)
	if err != nil {
		return guard.Policy{}, err
	}
	p := guard.Policy{
		Mode:            mode,
		AllowedPatterns: h.AllowedPatterns,
		BlockedPatterns: h.BlockedPatterns,
		ThrottleLimit:   h.ThrottleLimit,
	}
	if err := p.Validate(); err != nil {
		return guard.Policy{}, err
	}
	return p, nil
}

// Clock returns the virtual clock.
func (e *Engine) Clock() *clock.Clock { return e.clock }

// Scheduler returns the boundary event scheduler.
func (e *Engine) Scheduler() *events.Scheduler { return e.scheduler }

// Timers returns the virtual timer factory.
func (e *Engine) Timers() *vtimer.Factory { return e.timers }

// Guard returns the outbound request guard.
func (e *Engine) Guard() *guard.Guard { return e.guard }

// Config returns the configuration the engine was built from.
func (e *Engine) Config() config.AppConfig { return e.cfg }

// Store returns the persistence backend, or nil when persistence is off.
func (e *Engine) Store() persistence.Store { return e.store }

// HTTPClient returns a client whose requests pass through the guard.
func (e *Engine) HTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: guard.NewTransport(e.guard, base)}
}
