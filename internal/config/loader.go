// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configuration file path (empty for env-only configuration).
func (l *Loader) Path() string { return l.configPath }

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	// 1. Defaults
	cfg := Defaults()

	// 2. File (if provided); absent keys keep their defaults
	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	// 3. Environment variables (highest priority)
	l.mergeEnvConfig(&cfg)

	// 4. Version from binary
	cfg.Version = l.version

	// 5. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML file onto cfg with STRICT parsing.
// Unknown fields are a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnvConfig overrides cfg with TIMEWARP_* environment variables.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("TIMEWARP_LOG_LEVEL", cfg.LogLevel)

	// Clock
	cfg.Clock.Rate = l.envFloat("TIMEWARP_CLOCK_RATE", cfg.Clock.Rate)
	cfg.Clock.Production = l.envBool("TIMEWARP_PRODUCTION", cfg.Clock.Production)
	cfg.Clock.ForceEnable = l.envBool("TIMEWARP_FORCE_ENABLE", cfg.Clock.ForceEnable)
	cfg.Clock.Timezone = l.envString("TIMEWARP_TIMEZONE", cfg.Clock.Timezone)
	cfg.Clock.CheckInterval = l.envDuration("TIMEWARP_CHECK_INTERVAL", cfg.Clock.CheckInterval)

	// Outbound request guard
	cfg.HTTP.Policy = strings.ToLower(l.envString("TIMEWARP_HTTP_POLICY", cfg.HTTP.Policy))
	cfg.HTTP.AllowedPatterns = l.envList("TIMEWARP_HTTP_ALLOWED_PATTERNS", cfg.HTTP.AllowedPatterns)
	cfg.HTTP.BlockedPatterns = l.envList("TIMEWARP_HTTP_BLOCKED_PATTERNS", cfg.HTTP.BlockedPatterns)
	cfg.HTTP.ThrottleLimit = l.envInt("TIMEWARP_HTTP_THROTTLE_LIMIT", cfg.HTTP.ThrottleLimit)

	// Store
	cfg.Store.Backend = strings.ToLower(l.envString("TIMEWARP_STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.Path = l.envString("TIMEWARP_STORE_PATH", cfg.Store.Path)
	cfg.Store.RedisAddr = l.envString("TIMEWARP_STORE_REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisDB = l.envInt("TIMEWARP_STORE_REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.Key = l.envString("TIMEWARP_STORE_KEY", cfg.Store.Key)

	// Control API
	cfg.Server.Listen = l.envString("TIMEWARP_LISTEN", cfg.Server.Listen)
	cfg.Server.ReadTimeout = l.envDuration("TIMEWARP_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("TIMEWARP_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("TIMEWARP_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RequestsPerMinute = l.envInt("TIMEWARP_REQUESTS_PER_MINUTE", cfg.Server.RequestsPerMinute)
	cfg.Server.MutationsPerSecond = l.envFloat("TIMEWARP_MUTATIONS_PER_SECOND", cfg.Server.MutationsPerSecond)
	cfg.Server.MutationBurst = l.envInt("TIMEWARP_MUTATION_BURST", cfg.Server.MutationBurst)
	cfg.Server.AllowedOrigins = l.envList("TIMEWARP_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	// Telemetry
	cfg.Telemetry.Enabled = l.envBool("TIMEWARP_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ServiceName = l.envString("TIMEWARP_TELEMETRY_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Exporter = strings.ToLower(l.envString("TIMEWARP_TELEMETRY_EXPORTER", cfg.Telemetry.Exporter))
	cfg.Telemetry.Endpoint = l.envString("TIMEWARP_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TIMEWARP_TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// LoadFileConfig loads a YAML config file onto the defaults without applying
// env overrides or validation.
func LoadFileConfig(path string) (AppConfig, error) {
	cfg := Defaults()
	err := NewLoader(path, "").loadFile(path, &cfg)
	return cfg, err
}
