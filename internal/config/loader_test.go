// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timewarp/internal/validate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timewarp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v1.2.3"
	assert.Equal(t, want, cfg)
	assert.Equal(t, 1.0, cfg.Clock.Rate)
	assert.Equal(t, "block", cfg.HTTP.Policy)
	assert.Equal(t, "none", cfg.Store.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
clock:
  rate: 60
  force_enable: true
  timezone: UTC
  check_interval: 250ms
http:
  policy: throttle
  throttle_limit: 10
  allowed_patterns: ["/health?"]
  blocked_patterns:
    - /payments/*
store:
  backend: sqlite
  path: /var/lib/timewarp/clock.db
server:
  listen: 127.0.0.1:9000
`)

	cfg, err := NewLoader(path, "v1").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 60.0, cfg.Clock.Rate)
	assert.True(t, cfg.Clock.ForceEnable)
	assert.Equal(t, "UTC", cfg.Clock.Timezone)
	assert.Equal(t, 250*time.Millisecond, cfg.Clock.CheckInterval)
	assert.Equal(t, "throttle", cfg.HTTP.Policy)
	assert.Equal(t, 10, cfg.HTTP.ThrottleLimit)
	assert.Equal(t, []string{"/health?"}, cfg.HTTP.AllowedPatterns)
	assert.Equal(t, []string{"/payments/*"}, cfg.HTTP.BlockedPatterns)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, Defaults().Server.ShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "timewarp.clock", cfg.Store.Key)

	loc, err := cfg.Clock.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
clock:
  rate: 60
http:
  policy: allow
  blocked_patterns: ["/a/*"]
`)
	t.Setenv("TIMEWARP_CLOCK_RATE", "2.5")
	t.Setenv("TIMEWARP_HTTP_POLICY", "THROTTLE")
	t.Setenv("TIMEWARP_HTTP_BLOCKED_PATTERNS", " /b/* , ,/c ")
	t.Setenv("TIMEWARP_PRODUCTION", "yes")
	t.Setenv("TIMEWARP_FORCE_ENABLE", "1")

	l := NewLoader(path, "v1")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Clock.Rate)
	assert.Equal(t, "throttle", cfg.HTTP.Policy)
	assert.Equal(t, []string{"/b/*", "/c"}, cfg.HTTP.BlockedPatterns)
	assert.True(t, cfg.Clock.Production)
	assert.True(t, cfg.Clock.ForceEnable)
	assert.Contains(t, l.ConsumedEnvKeys, "TIMEWARP_CLOCK_RATE")
	assert.Contains(t, l.ConsumedEnvKeys, "TIMEWARP_STORE_BACKEND")
}

func TestLoad_EmptyEnvListClearsFileList(t *testing.T) {
	path := writeConfig(t, "http:\n  allowed_patterns: [\"/x\"]\n")
	t.Setenv("TIMEWARP_HTTP_ALLOWED_PATTERNS", "")

	cfg, err := NewLoader(path, "v1").Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTP.AllowedPatterns)
}

func TestLoad_UnknownFieldIsRejected(t *testing.T) {
	path := writeConfig(t, "clock:\n  speed: 10\n")

	_, err := NewLoader(path, "v1").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "log_level: info\n---\nlog_level: debug\n")

	_, err := NewLoader(path, "v1").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_RejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timewarp.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	_, err := NewLoader(path, "v1").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := NewLoader(path, "v1").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Clock, cfg.Clock)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
clock:
  rate: -1
  timezone: Nowhere/Special
http:
  policy: sometimes
store:
  backend: redis
`)

	_, err := NewLoader(path, "v1").Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, e := range verr.Errors() {
		fields[e.Field] = true
	}
	for _, f := range []string{"Clock.Rate", "Clock.Timezone", "HTTP.Policy", "Store.RedisAddr"} {
		assert.True(t, fields[f], "expected validation error for %s", f)
	}
}

func TestValidate_TelemetryOnlyCheckedWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.Exporter = "carrier-pigeon"
	assert.NoError(t, Validate(cfg))

	cfg.Telemetry.Enabled = true
	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsInvalidUTF8Pattern(t *testing.T) {
	cfg := Defaults()
	cfg.HTTP.BlockedPatterns = []string{"/\xff"}
	assert.Error(t, Validate(cfg))
}

func TestLoadFileConfig_SkipsEnvAndValidation(t *testing.T) {
	path := writeConfig(t, "clock:\n  rate: 500000\n")
	t.Setenv("TIMEWARP_CLOCK_RATE", "3")

	cfg, err := LoadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, cfg.Clock.Rate)
	assert.Error(t, Validate(cfg))
}
