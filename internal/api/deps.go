// SPDX-License-Identifier: MIT

package api

import (
	"fmt"

	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/health"
	"github.com/ManuGH/hubgate/internal/jobs"
	xnet "github.com/ManuGH/hubgate/internal/platform/net"
	"github.com/ManuGH/hubgate/internal/ratelimit"
	"github.com/ManuGH/hubgate/internal/resilience"
	"github.com/ManuGH/hubgate/internal/usage"
)

// Deps carries the server's collaborators. Hub is an interface so handler
// tests can run against a scripted fake instead of a live endpoint.
type Deps struct {
	// Hub resolves model metadata and cards.
	Hub jobs.HubClient
	// Catalog is the persistent model store refreshes write into.
	Catalog *catalog.Store
	// Usage records served inference requests. Optional; nil disables
	// the request log and the usage endpoint returns empty results.
	Usage *usage.Store
	// Limiter enforces the per-IP and per-task-class inference budgets.
	// Optional; nil disables the in-handler limiter.
	Limiter *ratelimit.Limiter
	// Health aggregates readiness checkers for /healthz and /readyz.
	Health *health.Manager
	// Policy restricts outbound inference hosts.
	Policy *xnet.OutboundPolicy
	// Breaker is shared across all per-model inference clients so one
	// failing upstream trips the gate for everyone.
	Breaker *resilience.CircuitBreaker
	// UpstreamToken authenticates against the hub and inference
	// upstream. Empty means anonymous; gated models stay out of reach.
	UpstreamToken string
}

func (d Deps) validate() error {
	if d.Hub == nil {
		return fmt.Errorf("api: hub client is required")
	}
	if d.Catalog == nil {
		return fmt.Errorf("api: catalog store is required")
	}
	if d.Health == nil {
		return fmt.Errorf("api: health manager is required")
	}
	return nil
}
