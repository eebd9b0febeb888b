// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "line: %s", buf.String())
	return entry
}

func spanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func TestRequestIDRoundTrip(t *testing.T) {
	//nolint:staticcheck // nil context is tolerated on purpose
	ctx := ContextWithRequestID(nil, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	//nolint:staticcheck
	assert.Equal(t, "", RequestIDFromContext(nil))
}

func TestWithContext_AddsRequestAndTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	ctx = trace.ContextWithSpanContext(ctx, spanContext(t))

	l := WithContext(ctx, logger)
	l.Info().Msg("clock mutated")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-42", entry[FieldRequestID])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry[FieldTraceID])
	assert.Equal(t, "00f067aa0ba902b7", entry[FieldSpanID])
}

func TestWithContext_NothingToAdd(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithContext(context.Background(), logger)
	l.Info().Msg("plain")

	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, FieldRequestID)
	assert.NotContains(t, entry, FieldTraceID)
}

func TestWithComponentFromContext(t *testing.T) {
	var buf bytes.Buffer
	stored := zerolog.New(&buf).With().Str("origin", "ctx").Logger()
	ctx := stored.WithContext(ContextWithRequestID(context.Background(), "req-7"))

	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("request completed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ctx", entry["origin"])
	assert.Equal(t, "api", entry[FieldComponent])
	assert.Equal(t, "req-7", entry[FieldRequestID])
}

func TestFromContext_FallsBackToBase(t *testing.T) {
	buf := captureBase(t)

	FromContext(context.Background()).Info().Msg("from base")
	entry := decodeLine(t, buf)
	assert.Equal(t, "test", entry[FieldService])

	buf.Reset()
	//nolint:staticcheck
	FromContext(nil).Info().Msg("nil ctx")
	assert.Contains(t, buf.String(), "nil ctx")
}
