// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/log"
)

// envValue resolves key through parse. Unset and empty variables fall back to
// def; unparsable values fall back to def with a warning.
func envValue[T any](logger zerolog.Logger, key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		logger.Debug().Str("key", key).Interface("default", def).Bool("set", ok).Msg("env: default")
		return def
	}
	v, err := parse(raw)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Str("raw", raw).Interface("default", def).
			Msg("env: unparsable value ignored")
		return def
	}
	ev := logger.Debug().Str("key", key)
	if isSecretKey(key) {
		ev = ev.Bool("redacted", true)
	} else {
		ev = ev.Interface("value", v)
	}
	ev.Msg("env: override")
	return v
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

func envLogger() zerolog.Logger { return log.WithComponent("config") }

// ParseString returns the value of key, or def when it is unset or empty.
func ParseString(key, def string) string {
	return envValue(envLogger(), key, def, func(s string) (string, error) { return s, nil })
}

// ParseInt returns key as a base-10 integer.
func ParseInt(key string, def int) int {
	return envValue(envLogger(), key, def, strconv.Atoi)
}

// ParseFloat returns key as a float64.
func ParseFloat(key string, def float64) float64 {
	return envValue(envLogger(), key, def, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration returns key in Go duration syntax ("250ms", "1m30s").
func ParseDuration(key string, def time.Duration) time.Duration {
	return envValue(envLogger(), key, def, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, def bool) bool {
	return envValue(envLogger(), key, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}

// ParseList splits key on commas, trimming items and dropping empty ones.
// Unlike the scalar helpers a set but empty variable yields an empty list, so
// an operator can clear a list configured in the file.
func ParseList(key string, def []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	logger := envLogger()
	logger.Debug().Str("key", key).Strs("value", out).Msg("env: override")
	return out
}
