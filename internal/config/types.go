// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the complete, validated timewarp configuration.
type AppConfig struct {
	// Version is stamped from the binary, never from file or environment.
	Version  string `yaml:"-"`
	LogLevel string `yaml:"log_level"`

	Clock     ClockConfig     `yaml:"clock"`
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ClockConfig configures the virtual clock and the event scheduler.
type ClockConfig struct {
	Rate          float64       `yaml:"rate"`
	Production    bool          `yaml:"production"`
	ForceEnable   bool          `yaml:"force_enable"`
	Timezone      string        `yaml:"timezone"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// Location resolves Timezone. An empty name means the host zone.
func (c ClockConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// HTTPConfig configures the outbound request guard.
type HTTPConfig struct {
	Policy          string   `yaml:"policy"`
	AllowedPatterns []string `yaml:"allowed_patterns"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
	ThrottleLimit   int      `yaml:"throttle_limit"`
}

// StoreConfig selects the clock state persistence backend.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	Key       string `yaml:"key"`
}

// ServerConfig configures the control API listener.
type ServerConfig struct {
	Listen             string        `yaml:"listen"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	RequestsPerMinute  int           `yaml:"requests_per_minute"`
	MutationsPerSecond float64       `yaml:"mutations_per_second"`
	MutationBurst      int           `yaml:"mutation_burst"`
	// AllowedOrigins lists browser origins of the debug UI; "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		Clock: ClockConfig{
			Rate:          1,
			Timezone:      "Local",
			CheckInterval: time.Second,
		},
		HTTP: HTTPConfig{
			Policy:        "block",
			ThrottleLimit: 60,
		},
		Store: StoreConfig{
			Backend: "none",
			Key:     "timewarp.clock",
		},
		Server: ServerConfig{
			Listen:             ":8088",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			RequestsPerMinute:  600,
			MutationsPerSecond: 5,
			MutationBurst:      10,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "timewarp",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
