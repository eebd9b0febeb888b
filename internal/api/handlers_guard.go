// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/ManuGH/timewarp/internal/api/middleware"
	"github.com/ManuGH/timewarp/internal/telemetry"
)

type policyResponse struct {
	Mode            string   `json:"mode"`
	AllowedPatterns []string `json:"allowed_patterns"`
	BlockedPatterns []string `json:"blocked_patterns"`
	ThrottleLimit   int      `json:"throttle_limit"`
}

type evaluateRequest struct {
	Path *string `json:"path"`
}

func (s *Server) handleGuardPolicy(w http.ResponseWriter, _ *http.Request) {
	p := s.engine.Guard().Policy()
	resp := policyResponse{
		Mode:            string(p.Mode),
		AllowedPatterns: p.AllowedPatterns,
		BlockedPatterns: p.BlockedPatterns,
		ThrottleLimit:   p.ThrottleLimit,
	}
	if resp.AllowedPatterns == nil {
		resp.AllowedPatterns = []string{}
	}
	if resp.BlockedPatterns == nil {
		resp.BlockedPatterns = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGuardEvaluate asks the guard about a path. Throttle mode counts the
// evaluation against the current window like a real request.
func (s *Server) handleGuardEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, "body must be {\"path\": <string>}: "+err.Error())
		return
	}
	if req.Path == nil {
		writeBadRequest(w, r, "path is required")
		return
	}
	g := s.engine.Guard()
	d := g.Evaluate(*req.Path)
	middleware.AddSpanAttributes(r, telemetry.GuardAttributes(*req.Path, string(g.Policy().Mode), d.Allowed, d.Reason)...)
	writeJSON(w, http.StatusOK, d)
}
