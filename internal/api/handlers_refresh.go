// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ManuGH/hubgate/internal/usage"
)

// handleRefresh triggers a catalog refresh synchronously and reports the
// outcome. Overlapping triggers get a 409 instead of a second run.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	status, err := s.RunRefresh(r.Context())
	switch {
	case errors.Is(err, ErrRefreshRunning):
		respondError(w, r, http.StatusConflict, "refresh_in_progress", "a refresh is already running")
	case err != nil && status == nil:
		respondError(w, r, http.StatusInternalServerError, "refresh_failed", err.Error())
	default:
		// Partial failures still produce a status; the per-model error
		// counts live inside it.
		respondJSON(w, http.StatusOK, status)
	}
}

// usageResponse bundles the recent request log with per-model volume.
type usageResponse struct {
	Recent  []usage.Entry      `json:"recent"`
	ByModel []usage.ModelCount `json:"by_model"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		respondJSON(w, http.StatusOK, usageResponse{Recent: []usage.Entry{}, ByModel: []usage.ModelCount{}})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	ctx := r.Context()
	recent, err := s.deps.Usage.Recent(ctx, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "usage_error", "reading request log: "+err.Error())
		return
	}
	byModel, err := s.deps.Usage.CountByModel(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "usage_error", "aggregating request log: "+err.Error())
		return
	}

	if recent == nil {
		recent = []usage.Entry{}
	}
	if byModel == nil {
		byModel = []usage.ModelCount{}
	}
	respondJSON(w, http.StatusOK, usageResponse{Recent: recent, ByModel: byModel})
}
