// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the HTTP control surface of the time engine: clock
// state and mutations, boundary events, timers and guard decisions, plus
// /healthz, /readyz and Prometheus /metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/engine"
	"github.com/ManuGH/timewarp/internal/health"
	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/ratelimit"
)

// Server is the control API.
type Server struct {
	engine  *engine.Engine
	cfg     config.ServerConfig
	limiter *ratelimit.Limiter
	tracing string
	health  *health.Manager
	logger  zerolog.Logger
	router  chi.Router
}

// Option customizes a Server.
type Option func(*Server)

// WithTracing enables OpenTelemetry server spans under the given service name.
func WithTracing(service string) Option {
	return func(s *Server) { s.tracing = service }
}

// WithMutationLimiter replaces the limiter derived from the server config.
func WithMutationLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New builds the router for e. Clock mutations are limited per client by
// cfg.MutationsPerSecond unless it is 0.
func New(e *engine.Engine, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		engine: e,
		cfg:    cfg,
		logger: xglog.WithComponent("api"),
	}
	s.health = health.NewManager(e.Config().Version, e.Clock().Real())
	s.health.RegisterChecker(health.NewClockChecker(e.Clock()))
	s.health.RegisterChecker(health.NewStoreChecker(e.Store(), e.Config().Store.Key))
	if cfg.MutationsPerSecond > 0 {
		s.limiter = ratelimit.New(ratelimit.DefaultConfig(cfg.MutationsPerSecond, cfg.MutationBurst))
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
