package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("upstream: model not found")
	ErrUnauthorized        = errors.New("upstream: missing or invalid credentials")
	ErrForbidden           = errors.New("upstream: access forbidden")
	ErrRateLimited         = errors.New("upstream: rate limited")
	ErrUpstreamUnavailable = errors.New("upstream: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("upstream: internal error (5xx)")
	ErrUpstreamBadResponse = errors.New("upstream: invalid response format or malformed data")
	ErrTimeout             = errors.New("upstream: request timed out")
)

// HubError is a rich error type that wraps the sentinel errors with context.
type HubError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *HubError) Error() string {
	msg := fmt.Sprintf("hub: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *HubError) Unwrap() error {
	return e.Sentinel
}

// maxErrorBody caps how much upstream response text an error carries.
const maxErrorBody = 256

var (
	secretPattern = regexp.MustCompile(`(?i)\b(token|key|sid|secret|password|authorization)=\S+`)
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+\S+`)
)

// wrapError classifies a failed upstream exchange into a sentinel and
// attaches redacted diagnostics.
func wrapError(op string, err error, status int, body []byte) error {
	he := &HubError{Operation: op, Status: status, Err: err}

	switch {
	case err != nil:
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			he.Sentinel = ErrTimeout
		} else {
			he.Sentinel = ErrUpstreamUnavailable
		}
	case status == http.StatusNotFound:
		he.Sentinel = ErrNotFound
	case status == http.StatusUnauthorized:
		he.Sentinel = ErrUnauthorized
	case status == http.StatusForbidden:
		he.Sentinel = ErrForbidden
	case status == http.StatusTooManyRequests:
		he.Sentinel = ErrRateLimited
	case status == http.StatusBadRequest:
		he.Sentinel = ErrUpstreamBadResponse
	default:
		he.Sentinel = ErrUpstreamError
	}

	if len(body) > 0 {
		he.Body = truncate(redactSecrets(string(body)), maxErrorBody)
	}
	return he
}

// badResponseError marks a response that arrived but could not be decoded.
func badResponseError(op string, err error) error {
	return &HubError{Sentinel: ErrUpstreamBadResponse, Operation: op, Err: err}
}

// redactSecrets scrubs credential-shaped substrings from upstream error
// bodies before they reach logs.
func redactSecrets(s string) string {
	// Bearer first: "authorization=Bearer <tok>" would otherwise leave the
	// token behind once the key=value match consumes only "Bearer".
	s = bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	return secretPattern.ReplaceAllString(s, "$1=[REDACTED]")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
