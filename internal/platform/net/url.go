// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"net/url"
	"strings"
)

// SanitizeURL strips credentials and query parameters so endpoint URLs can
// be logged. Hub URLs may carry tokens in the query.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// ParseDirectHTTPURL reports whether s is a plain http(s) URL suitable as
// an upstream endpoint: a non-empty host, no embedded credentials and no
// fragment. Anything else (ftp, javascript, scheme-less hosts) is rejected.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, false
	}

	if u.Host == "" || u.User != nil || u.Fragment != "" {
		return nil, false
	}

	return u, true
}
