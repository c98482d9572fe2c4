// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/hub"
	"github.com/ManuGH/hubgate/internal/jobs"
	"github.com/ManuGH/hubgate/internal/modelcard"
	"github.com/ManuGH/hubgate/internal/validate"
)

// handleModel serves GET /api/v1/models/{owner}/{name} and the
// /eligibility suffix. The wildcard tail is split here because repo IDs
// themselves contain a slash.
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	tail := chi.URLParam(r, "*")

	eligibilityOnly := false
	if rest, ok := strings.CutSuffix(tail, "/eligibility"); ok {
		eligibilityOnly = true
		tail = rest
	}

	repoID, err := validate.NormalizeRepoID(tail)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_repo_id", err.Error())
		return
	}

	rec, err := s.lookupModel(r, repoID)
	if err != nil {
		respondModelError(w, r, repoID, err)
		return
	}

	if eligibilityOnly {
		respondJSON(w, http.StatusOK, eligibilityResponse{
			RepoID:   rec.RepoID,
			Decision: rec.Decision,
		})
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// eligibilityResponse is the trimmed answer for the /eligibility suffix.
type eligibilityResponse struct {
	RepoID   string             `json:"repo_id"`
	Decision modelcard.Decision `json:"decision"`
}

// lookupModel serves from the catalog when it can and resolves against
// the hub on a miss, so unknown models work without waiting for the next
// refresh. The resolved record lands in the catalog as a side effect.
func (s *Server) lookupModel(r *http.Request, repoID string) (*catalog.Record, error) {
	ctx := r.Context()

	rec, err := s.deps.Catalog.Get(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	return jobs.Resolve(ctx, jobs.Deps{
		Client:   s.deps.Hub,
		Catalog:  s.deps.Catalog,
		HasToken: s.deps.UpstreamToken != "",
	}, repoID)
}

// respondModelError maps hub and catalog failures onto API statuses.
func respondModelError(w http.ResponseWriter, r *http.Request, repoID string, err error) {
	switch {
	case errors.Is(err, hub.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "model_not_found", "no such model: "+repoID)
	case errors.Is(err, hub.ErrForbidden):
		respondError(w, r, http.StatusForbidden, "model_forbidden", "the hub refused access to "+repoID)
	case errors.Is(err, hub.ErrTimeout):
		respondError(w, r, http.StatusGatewayTimeout, "hub_timeout", "hub lookup timed out for "+repoID)
	case errors.Is(err, hub.ErrUpstreamError), errors.Is(err, hub.ErrUpstreamBadResponse):
		respondError(w, r, http.StatusBadGateway, "hub_error", "hub lookup failed for "+repoID)
	default:
		respondError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
