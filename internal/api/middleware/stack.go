// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware stack for the
// gateway API server.
package middleware

import (
	"github.com/go-chi/chi/v5"

	hglog "github.com/ManuGH/hubgate/internal/log"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
// A single stack keeps cross-cutting concerns from drifting between the
// API listener and any future listener.
type StackConfig struct {
	// CORS
	EnableCORS     bool
	AllowedOrigins []string

	// Security headers
	EnableSecurityHeaders bool

	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Global rate limit (per-IP sliding window at the edge; the
	// task-class limiter runs inside the pipeline handler)
	EnableRateLimit    bool
	RateLimitRequests  int
	RateLimitWhitelist []string
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. CORS (so OPTIONS and browser clients behave)
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	// 3. Security headers
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders())
	}
	// 4. Metrics (track all requests)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 5. Tracing (otelhttp server spans + W3C context propagation)
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	// 6. Logging (mints the request ID, wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(hglog.Middleware())
	}
	// 7. Rate limit (global edge protection)
	if cfg.EnableRateLimit {
		r.Use(APIRateLimit(cfg.RateLimitRequests, cfg.RateLimitWhitelist))
	}
}
