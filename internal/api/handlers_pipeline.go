// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/hubgate/internal/inference"
	hglog "github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/ratelimit"
	"github.com/ManuGH/hubgate/internal/resilience"
	"github.com/ManuGH/hubgate/internal/tasks"
	"github.com/ManuGH/hubgate/internal/usage"
	"github.com/ManuGH/hubgate/internal/validate"
)

// maxInferenceBody caps request payloads. Audio and image inputs arrive
// base64-encoded inside the JSON body, so this is generous.
const maxInferenceBody = 10 << 20

// pipelineRequest is the client-facing inference payload.
type pipelineRequest struct {
	Inputs     json.RawMessage `json:"inputs"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// handlePipeline proxies POST /api/v1/pipeline/{task}/{owner}/{name} to
// the inference upstream, after the eligibility and rate-limit gates.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := hglog.WithComponentFromContext(ctx, "api")

	task, err := tasks.Parse(chi.URLParam(r, "task"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, "unknown_task", err.Error())
		return
	}

	repoID, err := validate.NormalizeRepoID(chi.URLParam(r, "*"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_repo_id", err.Error())
		return
	}

	clientIP := ratelimit.GetClientIP(r)

	rec, err := s.lookupModel(r, repoID)
	if err != nil {
		respondModelError(w, r, repoID, err)
		return
	}

	if !rec.Decision.Eligible {
		s.recordUsage(r, usage.Entry{
			RepoID:   repoID,
			Task:     task,
			Status:   usage.StatusDenied,
			ClientIP: clientIP,
		})
		respondJSON(w, http.StatusForbidden, errorResponse{
			Error:  "model_not_eligible",
			Detail: "model " + repoID + " is not available for hosted inference",
			Reason: string(rec.Decision.Reason),
		})
		return
	}

	if rec.Decision.Task != task {
		respondError(w, r, http.StatusBadRequest, "task_mismatch",
			"model "+repoID+" serves task "+string(rec.Decision.Task)+", not "+string(task))
		return
	}

	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(clientIP, task) {
		respondError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded",
			"inference budget for task class exhausted, retry later")
		return
	}

	var req pipelineRequest
	body := http.MaxBytesReader(w, r.Body, maxInferenceBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "decoding request body: "+err.Error())
		return
	}
	if len(req.Inputs) == 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_body", `request body must carry an "inputs" key`)
		return
	}

	client, err := s.inferenceClient(ctx, repoID, string(task))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "internal_error", "binding inference client: "+err.Error())
		return
	}

	resp, err := client.DoWithRetry(ctx, inference.Request{
		Inputs:     req.Inputs,
		Parameters: req.Parameters,
	})
	if err != nil {
		s.respondInferenceError(w, r, repoID, task, clientIP, err)
		return
	}

	s.recordUsage(r, usage.Entry{
		RepoID:     repoID,
		Task:       task,
		Status:     usage.StatusOK,
		DurationMS: resp.Duration.Milliseconds(),
		ColdStart:  resp.Attempts > 1,
		ClientIP:   clientIP,
	})

	logger.Info().
		Str("event", "pipeline.served").
		Str("repo_id", repoID).
		Str("task", string(task)).
		Int("attempts", resp.Attempts).
		Dur("upstream_duration", resp.Duration).
		Msg("inference request served")

	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

// respondInferenceError maps upstream failures onto gateway responses. A
// cold model is relayed as 503 with a Retry-After so well-behaved clients
// back off for roughly the load estimate.
func (s *Server) respondInferenceError(w http.ResponseWriter, r *http.Request, repoID string, task tasks.Task, clientIP string, err error) {
	var loading *inference.ModelLoadingError
	if errors.As(err, &loading) {
		s.recordUsage(r, usage.Entry{
			RepoID:   repoID,
			Task:     task,
			Status:   usage.StatusLoading,
			ClientIP: clientIP,
		})
		retryAfter := loading.RetryAfter()
		if retryAfter <= 0 {
			retryAfter = 20 * time.Second
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)))
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":          "model_loading",
			"detail":         "model " + repoID + " is loading, retry shortly",
			"estimated_time": loading.EstimatedTime,
		})
		return
	}

	s.recordUsage(r, usage.Entry{
		RepoID:   repoID,
		Task:     task,
		Status:   usage.StatusError,
		ClientIP: clientIP,
	})

	var apiErr *inference.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			respondError(w, r, http.StatusTooManyRequests, "upstream_rate_limited", "the upstream throttled this model, retry later")
		case apiErr.Status >= 400 && apiErr.Status < 500:
			respondError(w, r, apiErr.Status, "upstream_rejected", apiErr.Error())
		default:
			respondError(w, r, http.StatusBadGateway, "upstream_error", apiErr.Error())
		}
		return
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		respondError(w, r, http.StatusServiceUnavailable, "upstream_unavailable", "upstream circuit open, retry later")
		return
	}

	respondError(w, r, http.StatusBadGateway, "upstream_error", err.Error())
}

// recordUsage writes a request-log entry, tolerating a missing store.
// Logging failures never fail the request they describe.
func (s *Server) recordUsage(r *http.Request, e usage.Entry) {
	if s.deps.Usage == nil {
		return
	}
	e.TS = time.Now().UTC()
	if err := s.deps.Usage.Insert(r.Context(), e); err != nil {
		logger := hglog.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Str("repo_id", e.RepoID).
			Msg("usage insert failed")
	}
}
