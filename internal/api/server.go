// SPDX-License-Identifier: MIT

// Package api serves the gateway's HTTP surface: health probes, the model
// catalog, eligibility lookups, and the inference proxy itself.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/hubgate/internal/api/middleware"
	"github.com/ManuGH/hubgate/internal/config"
	"github.com/ManuGH/hubgate/internal/inference"
	"github.com/ManuGH/hubgate/internal/jobs"
	hglog "github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/platform/httpx"
)

// maxInferenceClients bounds the per-model client cache. When the cap is
// hit the cache is dropped wholesale; clients are cheap to rebuild since
// they share one transport.
const maxInferenceClients = 256

// Server is the gateway API. It is safe for concurrent use and reads its
// configuration through a getter so reloads take effect without restart.
type Server struct {
	cfg  func() config.Config
	deps Deps

	instanceID types.UUID
	started    time.Time

	// upstream is the shared transport for all inference clients; it
	// carries the bearer token and user agent.
	upstream *http.Client

	refreshRunning atomic.Bool
	lastRefresh    atomic.Pointer[jobs.Status]

	mu      sync.Mutex
	clients map[string]*inference.Client
}

// New builds the API server. cfg must never return a zero Config; pass
// config.Holder.Get or an equivalent closure.
func New(cfg func() config.Config, deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	c := cfg()
	hc := httpx.NewAPIClient(c.Inference.Timeout, 30*time.Second)
	hc.Transport = httpx.NewAuthTransport(hc.Transport, deps.UpstreamToken, "hubgate/"+c.Version)

	return &Server{
		cfg:        cfg,
		deps:       deps,
		instanceID: types.UUID(uuid.New()),
		started:    time.Now(),
		upstream:   hc,
		clients:    make(map[string]*inference.Client),
	}, nil
}

// Handler builds the router. Probes and the task list are public; every
// other endpoint sits behind the token gate.
func (s *Server) Handler() http.Handler {
	c := s.cfg()

	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "hubgate-api",
		EnableLogging:         true,
		EnableRateLimit:       c.RateLimit.Enabled,
		RateLimitRequests:     int(c.RateLimit.PerIPRate * 60),
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	// A dedicated metrics listener takes precedence; without one the
	// scrape endpoint rides on the API port.
	if c.MetricsListen == "" {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tasks", s.handleTasks)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/status", s.handleStatus)
			r.Get("/usage", s.handleUsage)

			// Repo IDs contain a slash ("owner/name"), so the tail is a
			// wildcard and the handlers split it themselves.
			r.Get("/models/*", s.handleModel)
			r.Post("/pipeline/{task}/*", s.handlePipeline)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RefreshRateLimit())
				r.Post("/refresh", s.handleRefresh)
			})
		})
	})

	return r
}

// RunRefresh triggers a catalog refresh, refusing to overlap a running
// one. The daemon's ticker and the POST /refresh handler both funnel
// through here.
func (s *Server) RunRefresh(ctx context.Context) (*jobs.Status, error) {
	if !s.refreshRunning.CompareAndSwap(false, true) {
		return nil, ErrRefreshRunning
	}
	defer s.refreshRunning.Store(false)

	status, err := jobs.Refresh(ctx, s.cfg(), jobs.Deps{
		Client:   s.deps.Hub,
		Catalog:  s.deps.Catalog,
		HasToken: s.deps.UpstreamToken != "",
	})
	if status != nil {
		s.lastRefresh.Store(status)
	}
	return status, err
}

// LastRefresh reports the most recent refresh outcome, or nil before the
// first run. Health checkers consume this.
func (s *Server) LastRefresh() *jobs.Status {
	return s.lastRefresh.Load()
}

// inferenceClient returns the cached client for a repo/task pair, binding
// a new one on first use.
func (s *Server) inferenceClient(ctx context.Context, repoID, task string) (*inference.Client, error) {
	key := repoID + "|" + task

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok {
		return c, nil
	}

	cfg := s.cfg()
	client, err := inference.New(ctx, inference.Options{
		Endpoint:    cfg.Inference.Endpoint,
		RepoID:      repoID,
		Task:        task,
		UseGPU:      cfg.Inference.UseGPU,
		DisableWait: !cfg.Inference.WaitForModel,
		MaxRetries:  cfg.Inference.MaxRetries,
		MaxWait:     cfg.Inference.MaxWait,
	}, inference.Deps{
		HTTP:    s.upstream,
		Policy:  s.deps.Policy,
		Breaker: s.deps.Breaker,
	})
	if err != nil {
		return nil, err
	}

	if len(s.clients) >= maxInferenceClients {
		logger := hglog.WithComponentFromContext(ctx, "api")
		logger.Debug().
			Int("clients", len(s.clients)).
			Msg("inference client cache full, dropping")
		s.clients = make(map[string]*inference.Client)
	}
	s.clients[key] = client
	return client, nil
}
