// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads, validates and hot-reloads the timewarp configuration.
//
// Precedence is ENV > file > defaults. The YAML file is parsed strictly:
// unknown keys fail the load with ErrUnknownConfigField.
package config
