// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/hubgate/internal/auth"
	hglog "github.com/ManuGH/hubgate/internal/log"
)

// requireAuth guards the v1 API. The gateway fails closed: with no API
// token configured every request is refused unless the operator opted
// into anonymous access explicitly.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.cfg()

		if cfg.APIToken == "" {
			if cfg.AuthAnonymous {
				next.ServeHTTP(w, r)
				return
			}
			respondError(w, r, http.StatusUnauthorized, "auth_required",
				"no API token configured and anonymous access is disabled")
			return
		}

		if !auth.AuthorizeRequest(r, cfg.APIToken, false) {
			logger := hglog.WithComponentFromContext(r.Context(), "api")
			logger.Warn().
				Str("event", "auth.denied").
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("request with missing or invalid token")
			respondError(w, r, http.StatusUnauthorized, "auth_required",
				"missing or invalid API token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
