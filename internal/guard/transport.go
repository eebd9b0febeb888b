// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/timewarp/internal/telemetry"
)

// ErrDenied matches every *DeniedError via errors.Is.
var ErrDenied = errors.New("guard: request denied")

// DeniedError is returned by Transport for requests the guard refused.
type DeniedError struct {
	Method string
	Path   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("guard: %s %s denied: %s", e.Method, e.Path, e.Reason)
}

func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// Transport is an http.RoundTripper that consults a Guard before sending.
// Denied requests never reach Base.
type Transport struct {
	Base  http.RoundTripper
	Guard *Guard
}

// NewTransport wraps base (http.DefaultTransport if nil) with guard checks
// and OpenTelemetry client instrumentation.
func NewTransport(g *Guard, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: otelhttp.NewTransport(base), Guard: g}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	_, span := telemetry.Tracer("timewarp/guard").Start(req.Context(), "guard.evaluate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		))
	d := t.Guard.Evaluate(req.URL.Path)
	span.SetAttributes(telemetry.GuardAttributes(req.URL.Path, string(t.Guard.Policy().Mode), d.Allowed, d.Reason)...)
	if !d.Allowed {
		span.SetStatus(codes.Error, d.Reason)
		span.End()
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &DeniedError{Method: req.Method, Path: req.URL.Path, Reason: d.Reason}
	}
	span.End()

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
