// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sqlite opens and checks the SQLite file behind the sqlite clock
// state backend. It uses the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config tunes the connection pool.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig suits the clock store: rare, tiny writes serialized by the
// clock itself.
func DefaultConfig() Config {
	return Config{BusyTimeout: 5 * time.Second, MaxOpenConns: 4}
}

// dsn builds a modernc file URI. Every pragma is applied per connection.
func dsn(path string, pragmas ...string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open returns a pinged pool in WAL mode.
func Open(path string, cfg Config) (*sql.DB, error) {
	conns := max(cfg.MaxOpenConns, 1)
	db, err := sql.Open("sqlite", dsn(path,
		"journal_mode(WAL)",
		"busy_timeout("+strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10)+")",
		"synchronous(NORMAL)",
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}

// VerifyIntegrity runs PRAGMA quick_check, or integrity_check when mode is
// "full", against a read-only connection. It returns nil issues when the
// check reports "ok" and the reported rows otherwise.
func VerifyIntegrity(path, mode string) ([]string, error) {
	db, err := sql.Open("sqlite", dsn(path, "busy_timeout(2000)")+"&mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s read-only: %w", path, err)
	}
	defer db.Close()

	check := "quick_check"
	if mode == "full" {
		check = "integrity_check"
	}
	rows, err := db.Query("PRAGMA " + check)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", check, err)
	}
	defer rows.Close()

	var issues []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: %s row: %w", check, err)
		}
		issues = append(issues, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", check, err)
	}

	switch {
	case len(issues) == 1 && strings.EqualFold(issues[0], "ok"):
		return nil, nil
	case len(issues) == 0:
		return []string{check + " returned no rows"}, nil
	}
	return issues, nil
}
