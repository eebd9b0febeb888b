// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP middleware stack of the control API.
package middleware

import (
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the control API stack.
type StackConfig struct {
	EnableCORS     bool
	AllowedOrigins []string

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics bool
	// TracingService names the otelhttp spans; empty disables tracing.
	TracingService string
	EnableLogging  bool

	// RequestsPerMinute is the per-client budget for the whole API; 0 disables it.
	RequestsPerMinute int
}

// NewRouter returns a chi router with ApplyStack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack installs the layers outermost first. Recovery and request IDs
// are always on; rejected requests are still measured, traced and logged
// because the rate limit sits innermost.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer, RequestID)
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(Logging)
	}
	r.Use(APIRateLimit(cfg.RequestsPerMinute))
}
