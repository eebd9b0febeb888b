// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/timewarp/internal/api/middleware"
	"github.com/ManuGH/timewarp/internal/telemetry"
)

type eventInfo struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
}

type eventsResponse struct {
	Location    string      `json:"location"`
	LastChecked time.Time   `json:"last_checked"`
	Events      []eventInfo `json:"events"`
}

type checkResponse struct {
	Fired       []string  `json:"fired"`
	LastChecked time.Time `json:"last_checked"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	sched := s.engine.Scheduler()
	resp := eventsResponse{
		Location:    sched.Location().String(),
		LastChecked: sched.LastChecked(),
	}
	for _, e := range sched.Events() {
		resp.Events = append(resp.Events, eventInfo{Name: e.Name(), Subscribers: e.SubscriberCount()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCheckEvents runs one boundary check immediately, outside the
// scheduler cadence.
func (s *Server) handleCheckEvents(w http.ResponseWriter, r *http.Request) {
	sched := s.engine.Scheduler()
	fired := sched.Check()
	if fired == nil {
		fired = []string{}
	}
	middleware.AddSpanAttributes(r, telemetry.EventAttributes(fired)...)
	writeJSON(w, http.StatusOK, checkResponse{Fired: fired, LastChecked: sched.LastChecked()})
}

func (s *Server) handleClearSubscribers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := s.engine.Scheduler().Event(name)
	if !ok {
		writeNotFound(w, r, "unknown event "+name)
		return
	}
	n := e.SubscriberCount()
	e.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "cleared": n})
}
