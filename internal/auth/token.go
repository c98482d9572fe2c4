// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth implements token extraction and constant-time verification
// for the gateway API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ManuGH/hubgate/internal/log"
)

// ExtractToken retrieves the API token from the request, checking sources
// in order of preference:
//  1. Authorization: Bearer <token>
//  2. Cookie: hubgate_session
//  3. Header: X-API-Token
//  4. Query: ?token= (only when allowQuery is set)
func ExtractToken(r *http.Request, allowQuery bool) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	if c, err := r.Cookie("hubgate_session"); err == nil && c.Value != "" {
		return c.Value
	}

	if t := r.Header.Get("X-API-Token"); t != "" {
		return t
	}

	// Query tokens leak into proxy and browser logs. Kept behind a flag
	// for clients that cannot set headers, warned on every use.
	if allowQuery {
		if t := r.URL.Query().Get("token"); t != "" {
			logger := log.Base()
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("deprecated query parameter authentication used, switch to the Authorization header")
			return t
		}
	}

	return ""
}

// AuthorizeToken compares got against expected in constant time. An empty
// expected token authorizes nothing; an unset credential must fail closed.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expectedToken.
func AuthorizeRequest(r *http.Request, expectedToken string, allowQuery bool) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r, allowQuery), expectedToken)
}
