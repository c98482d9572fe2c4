// SPDX-License-Identifier: MIT

package httpx

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// authTransport injects authorization and user-agent headers on every
// outbound request and instruments the exchange with OpenTelemetry.
type authTransport struct {
	base      http.RoundTripper
	token     string
	userAgent string
}

// NewAuthTransport wraps base with bearer credentials, a user agent and
// OTel client instrumentation. A nil base uses http.DefaultTransport.
func NewAuthTransport(base http.RoundTripper, token, userAgent string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{
		base:      otelhttp.NewTransport(base),
		token:     token,
		userAgent: userAgent,
	}
}

// RoundTrip clones the request; transports must not mutate the original.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" && clone.Header.Get("Authorization") == "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(clone)
}
