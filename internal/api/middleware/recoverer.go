// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"runtime/debug"

	hglog "github.com/ManuGH/hubgate/internal/log"
)

// Recoverer converts handler panics into 500 responses instead of killing
// the connection, and logs the stack for the postmortem.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					// The handler aborted deliberately; let net/http handle it.
					panic(rec)
				}
				logger := hglog.WithComponentFromContext(r.Context(), "api")
				logger.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("event", "http.panic").
					Str("path", r.URL.Path).
					Msg("handler panicked")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
