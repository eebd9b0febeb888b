// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/config"
)

// ShutdownHook releases one resource during shutdown.
type ShutdownHook func(ctx context.Context) error

// Manager runs the control API listener and the shutdown sequence.
type Manager interface {
	// Start serves until ctx is done or the server fails, then shuts down.
	Start(ctx context.Context) error
	// Shutdown stops the server and runs the hooks in reverse registration
	// order. Calls after the first are no-ops.
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// Addr is the bound address, or nil before Start binds.
	Addr() net.Addr
}

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

type hookEntry struct {
	name string
	fn   ShutdownHook
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	mu    sync.Mutex
	state lifecycle
	srv   *http.Server
	ln    net.Listener
	hooks []hookEntry
}

// NewManager returns a Manager serving deps.APIHandler on cfg.Listen.
func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != idle {
		m.mu.Unlock()
		return ErrManagerStarted
	}
	m.state = running
	m.mu.Unlock()

	// Shutdown outlives ctx but is bounded by the configured timeout.
	stop := func() error {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
		defer cancel()
		return m.Shutdown(sctx)
	}

	serveErr, err := m.listen()
	if err != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrServerStartFailed, err), stop())
	}

	select {
	case err := <-serveErr:
		m.logger.Error().Err(err).Str("event", "api.server.failed").Msg("control API failed, shutting down")
		return errors.Join(err, stop())
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown requested")
		return stop()
	}
}

// listen binds synchronously so address errors surface from Start, then
// serves in the background.
func (m *manager) listen() (<-chan error, error) {
	ln, err := net.Listen("tcp", m.cfg.Listen)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       2 * m.cfg.ReadTimeout,
		MaxHeaderBytes:    64 << 10,
	}

	m.mu.Lock()
	m.ln, m.srv = ln, srv
	m.mu.Unlock()

	m.logger.Info().Str("addr", ln.Addr().String()).Msg("control API listening")

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("control API: %w", err)
		}
	}()
	return errc, nil
}

func (m *manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case idle:
		m.mu.Unlock()
		return ErrManagerNotStarted
	case stopped:
		m.mu.Unlock()
		return nil
	}
	m.state = stopped
	srv := m.srv
	hooks := append([]hookEntry(nil), m.hooks...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("control API shutdown: %w", err))
		}
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := m.runHook(ctx, hooks[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error().Err(err).Int("failures", len(errs)).Msg("shutdown finished with errors")
		return err
	}
	m.logger.Info().Msg("stopped cleanly")
	return nil
}

func (m *manager) runHook(ctx context.Context, h hookEntry) error {
	start := time.Now()
	err := h.fn(ctx)
	ev := m.logger.Debug()
	if err != nil {
		ev = m.logger.Error().Err(err)
	}
	ev.Str("hook", h.name).Dur("took", time.Since(start)).Msg("shutdown hook")
	if err != nil {
		return fmt.Errorf("hook %s: %w", h.name, err)
	}
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hookEntry{name: name, fn: hook})
	m.mu.Unlock()
}
