// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	hglog "github.com/ManuGH/hubgate/internal/log"
)

// ErrRefreshRunning is returned when a refresh is triggered while another
// run is still in flight.
var ErrRefreshRunning = errors.New("refresh already running")

// errorResponse is the envelope every non-2xx answer uses. Reason carries
// the eligibility verdict on 403s so clients can distinguish an opted-out
// model from a gated one.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	if status >= http.StatusInternalServerError {
		logger := hglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Int("status", status).
			Str("code", code).
			Str("path", r.URL.Path).
			Msg(detail)
	}
	respondJSON(w, status, errorResponse{Error: code, Detail: detail})
}
