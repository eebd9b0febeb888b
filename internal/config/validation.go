// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"unicode/utf8"

	"github.com/ManuGH/timewarp/internal/validate"
)

// Rate bounds accepted from configuration; they match the clock's clamp range.
const (
	minClockRate = 0
	maxClockRate = 100000
)

// Validate reports every invalid field of cfg as one validate.ValidationError.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)

	// Clock
	v.FloatRange("Clock.Rate", cfg.Clock.Rate, minClockRate, maxClockRate)
	v.Timezone("Clock.Timezone", cfg.Clock.Timezone)
	v.PositiveDuration("Clock.CheckInterval", cfg.Clock.CheckInterval)

	// Outbound request guard
	v.OneOf("HTTP.Policy", cfg.HTTP.Policy, []string{"allow", "block", "throttle"})
	v.Positive("HTTP.ThrottleLimit", cfg.HTTP.ThrottleLimit)
	for _, p := range cfg.HTTP.AllowedPatterns {
		pattern("HTTP.AllowedPatterns", p, v)
	}
	for _, p := range cfg.HTTP.BlockedPatterns {
		pattern("HTTP.BlockedPatterns", p, v)
	}

	// Store
	v.OneOf("Store.Backend", cfg.Store.Backend, []string{"none", "memory", "file", "sqlite", "redis", "badger"})
	v.NotEmpty("Store.Key", cfg.Store.Key)
	switch cfg.Store.Backend {
	case "file", "sqlite", "badger":
		v.NotEmpty("Store.Path", cfg.Store.Path)
	case "redis":
		v.NotEmpty("Store.RedisAddr", cfg.Store.RedisAddr)
		v.Range("Store.RedisDB", cfg.Store.RedisDB, 0, 15)
	}

	// Control API
	v.ListenAddr("Server.Listen", cfg.Server.Listen)
	v.PositiveDuration("Server.ReadTimeout", cfg.Server.ReadTimeout)
	v.PositiveDuration("Server.WriteTimeout", cfg.Server.WriteTimeout)
	v.PositiveDuration("Server.ShutdownTimeout", cfg.Server.ShutdownTimeout)
	v.NonNegative("Server.RequestsPerMinute", cfg.Server.RequestsPerMinute)
	v.FloatRange("Server.MutationsPerSecond", cfg.Server.MutationsPerSecond, 0, 1000)
	if cfg.Server.MutationsPerSecond > 0 {
		v.Positive("Server.MutationBurst", cfg.Server.MutationBurst)
	}

	// Telemetry
	if cfg.Telemetry.Enabled {
		v.NotEmpty("Telemetry.ServiceName", cfg.Telemetry.ServiceName)
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

// pattern rejects guard patterns that can never match.
func pattern(field, p string, v *validate.Validator) {
	if !utf8.ValidString(p) {
		v.AddError(field, "pattern is not valid UTF-8", p)
		return
	}
	v.NotEmpty(field, p)
}
