// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps contains the collaborators the daemon Manager needs. Injection
// keeps the manager testable against in-process handlers.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus scrapes on a dedicated listener.
	// Nil (or an empty MetricsAddr) keeps /metrics on the API listener.
	MetricsHandler http.Handler

	// MetricsAddr is the dedicated metrics listen address, if any.
	MetricsAddr string
}

// Validate checks that the required dependencies are present.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
