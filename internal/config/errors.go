// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

// ErrUnknownConfigField is wrapped by Load when the YAML file has a key that
// no AppConfig field accepts.
var ErrUnknownConfigField = errors.New("unknown config field")
