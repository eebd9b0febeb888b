// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/timewarp/internal/api/middleware"
	"github.com/ManuGH/timewarp/internal/clock"
	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/telemetry"
)

// ClockStatus is the JSON view of the virtual clock.
type ClockStatus struct {
	VirtualTime   time.Time `json:"virtual_time"`
	RealTime      time.Time `json:"real_time"`
	Rate          float64   `json:"rate"`
	EffectiveRate float64   `json:"effective_rate"`
	Paused        bool      `json:"paused"`
	State         string    `json:"state"`
	Accelerated   bool      `json:"accelerated"`
	ActiveTimers  int       `json:"active_timers"`
}

type setRateRequest struct {
	Rate *float64 `json:"rate"`
}

type setRateResponse struct {
	ClockStatus
	Requested float64 `json:"requested_rate"`
	Clamped   bool    `json:"clamped"`
}

type travelRequest struct {
	Target time.Time `json:"target"`
}

type fastForwardRequest struct {
	// Duration is a Go duration string such as "24h" or "90m".
	Duration string `json:"duration"`
}

func (s *Server) status() ClockStatus {
	c := s.engine.Clock()
	snap := c.Snapshot()
	now := c.Real().Now()
	return ClockStatus{
		VirtualTime:   snap.At(now),
		RealTime:      now,
		Rate:          snap.Anchor.Rate,
		EffectiveRate: snap.EffectiveRate(),
		Paused:        snap.Paused,
		State:         string(snap.State()),
		Accelerated:   snap.Anchor.Rate != 1,
		ActiveTimers:  s.engine.Timers().ActiveCount(),
	}
}

func (s *Server) handleGetClock(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, "body must be {\"rate\": <number>}: "+err.Error())
		return
	}
	if req.Rate == nil {
		writeBadRequest(w, r, "rate is required")
		return
	}
	// NaN and infinities cannot be expressed in JSON; the clock clamps the rest.
	applied := s.engine.Clock().SetRate(*req.Rate)
	st := s.mutated(r, clock.OpSetRate)
	writeJSON(w, http.StatusOK, setRateResponse{
		ClockStatus: st,
		Requested:   *req.Rate,
		Clamped:     applied != *req.Rate,
	})
}

func (s *Server) handleTimeTravel(w http.ResponseWriter, r *http.Request) {
	var req travelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, "body must be {\"target\": <RFC 3339 time>}: "+err.Error())
		return
	}
	if req.Target.IsZero() {
		writeBadRequest(w, r, "target is required")
		return
	}
	s.engine.Clock().TimeTravelTo(req.Target)
	writeJSON(w, http.StatusOK, s.mutated(r, clock.OpTimeTravel))
}

func (s *Server) handleFastForward(w http.ResponseWriter, r *http.Request) {
	var req fastForwardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, "body must be {\"duration\": \"<go duration>\"}: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		writeBadRequest(w, r, fmt.Sprintf("invalid duration %q: %v", req.Duration, err))
		return
	}
	s.engine.Clock().FastForward(d)
	writeJSON(w, http.StatusOK, s.mutated(r, clock.OpFastForward))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.engine.Clock().Pause()
	writeJSON(w, http.StatusOK, s.mutated(r, clock.OpPause))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.engine.Clock().Resume()
	writeJSON(w, http.StatusOK, s.mutated(r, clock.OpResume))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Clock().Reset()
	writeJSON(w, http.StatusOK, s.mutated(r, clock.OpReset))
}

// mutated records a clock mutation made through the API on the request span
// and the audit log, and returns the resulting status.
func (s *Server) mutated(r *http.Request, op string) ClockStatus {
	st := s.status()
	middleware.AddSpanAttributes(r, telemetry.ClockAttributes(op, st.Rate, st.Paused, st.VirtualTime.Format(time.RFC3339Nano))...)

	logger := xglog.WithContext(r.Context(), s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "api.clock_mutation").
		Str("op", op).
		Float64(xglog.FieldRate, st.Rate).
		Bool("paused", st.Paused).
		Time(xglog.FieldVirtualTime, st.VirtualTime).
		Str("remote_addr", r.RemoteAddr).
		Msg("clock mutated via control API")
	return st
}

