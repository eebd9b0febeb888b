// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package persistence stores opaque clock state records by key.
//
// The clock treats every backend as best-effort: load failures are handled
// as "absent" and save failures are logged, never fatal.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the key/value collaborator used to persist clock state across restarts.
type Store interface {
	// Load returns the record stored under key. ok is false when no record exists.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Save stores data under key, replacing any previous record.
	Save(ctx context.Context, key string, data []byte) error
	// Close releases the backend.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown persistence backend")
	// ErrEmptyKey is returned when a store is used with an empty key.
	ErrEmptyKey = errors.New("persistence key is empty")
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend   string
	Path      string // file directory, sqlite database file or badger directory
	RedisAddr string
	RedisDB   int
}

// Open creates the backend described by cfg. BackendNone (or an empty
// backend) returns a nil Store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(cfg.Path)
	case BackendSQLite:
		return OpenSQLiteStore(ctx, cfg.Path)
	case BackendRedis:
		return OpenRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	case BackendBadger:
		return OpenBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
