// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/log"
)

// Logging attaches a request-scoped logger to the context and writes one
// access log line per request. Health and metrics scrapes log at debug.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.WithComponentFromContext(r.Context(), "api")
		r = r.WithContext(logger.WithContext(r.Context()))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		var ev *zerolog.Event
		switch {
		case sw.status >= http.StatusInternalServerError:
			ev = logger.Error()
		case !shouldTrace(r):
			ev = logger.Debug()
		default:
			ev = logger.Info()
		}
		ev.Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request completed")
	})
}
