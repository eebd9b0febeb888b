// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureBase(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test", Version: "v-test"})
	t.Cleanup(func() { Configure(Config{}) })
	return &buf
}

func TestConfigure_AttachesServiceAndVersion(t *testing.T) {
	buf := captureBase(t)

	l := WithComponent("clock")
	l.Info().Str(FieldEvent, "clock.rate_changed").Msg("rate changed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test", entry[FieldService])
	assert.Equal(t, "v-test", entry[FieldVersion])
	assert.Equal(t, "clock", entry[FieldComponent])
	assert.Equal(t, "clock.rate_changed", entry[FieldEvent])
	assert.Equal(t, "rate changed", entry["message"])
}

func TestCallbackHook_ForwardsMessageAndLevel(t *testing.T) {
	captureBase(t)

	type call struct {
		msg   string
		level zerolog.Level
	}
	var calls []call
	l := WithCallback(WithComponent("clock"), func(message string, level zerolog.Level) {
		calls = append(calls, call{message, level})
	})

	l.Warn().Msg("rate clamped")
	l.Debug().Msg("anchor recomputed")

	require.Len(t, calls, 2)
	assert.Equal(t, call{"rate clamped", zerolog.WarnLevel}, calls[0])
	assert.Equal(t, call{"anchor recomputed", zerolog.DebugLevel}, calls[1])
}

func TestCallbackHook_RespectsGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	count := 0
	l := WithCallback(Base(), func(string, zerolog.Level) { count++ })
	l.Info().Msg("dropped")
	l.Error().Msg("kept")

	assert.Equal(t, 1, count)
}

func TestWithCallback_NilIsNoop(t *testing.T) {
	l := Base()
	got := WithCallback(l, nil)
	assert.Equal(t, l.GetLevel(), got.GetLevel())

	// A zero hook must not panic.
	h := NewCallbackHook(nil)
	h.Run(nil, zerolog.InfoLevel, "ignored")
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("chatty"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
