// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime/types"

	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/jobs"
	"github.com/ManuGH/hubgate/internal/ratelimit"
	"github.com/ManuGH/hubgate/internal/tasks"
)

// StatusResponse summarizes the gateway for operators and dashboards.
type StatusResponse struct {
	Instance      types.UUID   `json:"instance"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Models        int          `json:"models"`
	Eligible      int          `json:"eligible"`
	TokenSet      bool         `json:"upstream_token_set"`
	LastRefresh   *jobs.Status `json:"last_refresh,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.deps.Catalog.Len(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "catalog_error", "counting catalog records: "+err.Error())
		return
	}

	eligible := 0
	err = s.deps.Catalog.Scan(ctx, func(rec *catalog.Record) error {
		if rec.Decision.Eligible {
			eligible++
		}
		return nil
	})
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "catalog_error", "scanning catalog: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		Instance:      s.instanceID,
		Version:       s.cfg().Version,
		UptimeSeconds: int64(time.Since(s.started) / time.Second),
		Models:        total,
		Eligible:      eligible,
		TokenSet:      s.deps.UpstreamToken != "",
		LastRefresh:   s.lastRefresh.Load(),
	})
}

// taskEntry pairs a supported task with its rate-limit class so clients
// can anticipate budgets.
type taskEntry struct {
	Task  tasks.Task `json:"task"`
	Class string     `json:"class"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	all := tasks.All()
	entries := make([]taskEntry, 0, len(all))
	for _, t := range all {
		entries = append(entries, taskEntry{Task: t, Class: ratelimit.ClassFor(t)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": entries})
}
