// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/timewarp/internal/api/middleware"
	"github.com/ManuGH/timewarp/internal/clock"
)

// APIPrefix is the mount point of the versioned control routes.
const APIPrefix = "/api/v1"

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.tracing,
		EnableLogging:         true,
		RequestsPerMinute:     s.cfg.RequestsPerMinute,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/clock", s.handleGetClock)
		r.With(s.mutation(clock.OpSetRate)).Put("/clock/rate", s.handleSetRate)
		r.With(s.mutation(clock.OpTimeTravel)).Post("/clock/travel", s.handleTimeTravel)
		r.With(s.mutation(clock.OpFastForward)).Post("/clock/fast-forward", s.handleFastForward)
		r.With(s.mutation(clock.OpPause)).Post("/clock/pause", s.handlePause)
		r.With(s.mutation(clock.OpResume)).Post("/clock/resume", s.handleResume)
		r.With(s.mutation(clock.OpReset)).Post("/clock/reset", s.handleReset)

		r.Get("/events", s.handleListEvents)
		r.Post("/events/check", s.handleCheckEvents)
		r.Delete("/events/{name}/subscribers", s.handleClearSubscribers)

		r.Get("/timers", s.handleTimers)
		r.Delete("/timers", s.handleCancelTimers)

		r.Get("/guard/policy", s.handleGuardPolicy)
		r.Post("/guard/evaluate", s.handleGuardEvaluate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, r, "no route for "+r.URL.Path)
	})
	return r
}

func (s *Server) mutation(op string) func(http.Handler) http.Handler {
	return middleware.Mutations(s.limiter, op)
}

