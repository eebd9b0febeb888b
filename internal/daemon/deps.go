// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps is what a Manager serves and logs with.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler
}

// Validate rejects a disabled (zero value) logger and a nil handler.
func (d *Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}
