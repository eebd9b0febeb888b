// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	xglog "github.com/ManuGH/timewarp/internal/log"
)

func (s *Server) handleTimers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"active": s.engine.Timers().ActiveCount()})
}

func (s *Server) handleCancelTimers(w http.ResponseWriter, r *http.Request) {
	n := s.engine.Timers().CancelAll()
	logger := xglog.WithContext(r.Context(), s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "api.timers_cancelled").
		Int("count", n).
		Msg("all virtual timers cancelled via control API")
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}
