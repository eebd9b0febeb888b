// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// devOrigins are allowed when no origin is configured: the usual local
// ports of a debug UI dev server.
var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

var corsMethods = strings.Join([]string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
}, ", ")

// CORS allows browser calls from the listed origins; "*" allows any origin.
// Requests without an Origin header (curl, other services) always get "*".
// Preflight requests are answered with 204 and never reach next.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = devOrigins
	}
	anyOrigin := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch origin := r.Header.Get("Origin"); {
			case origin == "":
				h.Set("Access-Control-Allow-Origin", "*")
			case anyOrigin || slices.Contains(allowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderRequestID)
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				h.Set("Allow", corsMethods)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
