package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/ManuGH/hubgate/internal/tasks"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("inference: model or task not found")
	ErrUnauthorized        = errors.New("inference: missing or invalid credentials")
	ErrForbidden           = errors.New("inference: access forbidden")
	ErrBadInput            = errors.New("inference: upstream rejected the input")
	ErrRateLimited         = errors.New("inference: rate limited")
	ErrModelLoading        = errors.New("inference: model is loading")
	ErrUpstreamError       = errors.New("inference: upstream internal error (5xx)")
	ErrUpstreamUnavailable = errors.New("inference: host unreachable or transport failure")
	ErrTimeout             = errors.New("inference: request timed out")
)

// APIError wraps the sentinel errors with call context.
type APIError struct {
	Sentinel error
	Task     tasks.Task
	RepoID   string
	Status   int
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("inference: %s/%s: %v", e.Task, e.RepoID, e.Sentinel)
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

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// ModelLoadingError reports a cold model. EstimatedTime is the upstream's
// load estimate in seconds, zero when it did not send one.
type ModelLoadingError struct {
	RepoID        string
	EstimatedTime float64
}

func (e *ModelLoadingError) Error() string {
	if e.EstimatedTime > 0 {
		return fmt.Sprintf("inference: model %s is loading, estimated %.1fs", e.RepoID, e.EstimatedTime)
	}
	return fmt.Sprintf("inference: model %s is loading", e.RepoID)
}

func (e *ModelLoadingError) Unwrap() error {
	return ErrModelLoading
}

// RetryAfter converts the upstream estimate into a wait duration. Zero
// means the upstream gave no estimate and the caller picks its own delay.
func (e *ModelLoadingError) RetryAfter() time.Duration {
	if e.EstimatedTime <= 0 {
		return 0
	}
	return time.Duration(e.EstimatedTime * float64(time.Second))
}

// maxErrorBody caps how much upstream response text an error carries.
const maxErrorBody = 256

var (
	secretPattern = regexp.MustCompile(`(?i)\b(token|key|sid|secret|password|authorization)=\S+`)
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+\S+`)
)

// loadingBody is the JSON shape of a cold-model 503.
type loadingBody struct {
	Error         string   `json:"error"`
	EstimatedTime *float64 `json:"estimated_time"`
}

// classifyUnavailable decides whether a 503 means the model is loading or
// the upstream is genuinely down. Loading bodies are JSON carrying an
// estimated_time or an error string naming a load in progress; anything
// else, an HTML error page included, is an outage.
func classifyUnavailable(repoID string, body []byte) error {
	var lb loadingBody
	if err := json.Unmarshal(body, &lb); err == nil {
		if lb.EstimatedTime != nil {
			return &ModelLoadingError{RepoID: repoID, EstimatedTime: *lb.EstimatedTime}
		}
		if loadingMessage.MatchString(lb.Error) {
			return &ModelLoadingError{RepoID: repoID}
		}
	}
	return nil
}

var loadingMessage = regexp.MustCompile(`(?i)\bloading\b`)

// wrapError classifies a failed inference exchange into a sentinel and
// attaches redacted diagnostics.
func wrapError(task tasks.Task, repoID string, err error, status int, body []byte) error {
	if status == http.StatusServiceUnavailable && err == nil {
		if loading := classifyUnavailable(repoID, body); loading != nil {
			return loading
		}
	}

	ae := &APIError{Task: task, RepoID: repoID, Status: status, Err: err}

	switch {
	case err != nil:
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			ae.Sentinel = ErrTimeout
		} else {
			ae.Sentinel = ErrUpstreamUnavailable
		}
	case status == http.StatusNotFound:
		ae.Sentinel = ErrNotFound
	case status == http.StatusUnauthorized:
		ae.Sentinel = ErrUnauthorized
	case status == http.StatusForbidden:
		ae.Sentinel = ErrForbidden
	case status == http.StatusBadRequest:
		ae.Sentinel = ErrBadInput
	case status == http.StatusTooManyRequests:
		ae.Sentinel = ErrRateLimited
	default:
		ae.Sentinel = ErrUpstreamError
	}

	if len(body) > 0 {
		ae.Body = truncate(redactSecrets(string(body)), maxErrorBody)
	}
	return ae
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
