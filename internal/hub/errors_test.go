package hub

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
)

func TestWrapError_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		body     string
		sentinel error
	}{
		{
			name:     "404 maps to not found",
			status:   404,
			body:     `{"error":"Repository not found"}`,
			sentinel: ErrNotFound,
		},
		{
			name:     "401 maps to unauthorized",
			status:   401,
			sentinel: ErrUnauthorized,
		},
		{
			name:     "403 maps to forbidden",
			status:   403,
			body:     `{"error":"Access to this resource is gated"}`,
			sentinel: ErrForbidden,
		},
		{
			name:     "429 maps to rate limited",
			status:   429,
			sentinel: ErrRateLimited,
		},
		{
			name:     "400 maps to bad response",
			status:   400,
			sentinel: ErrUpstreamBadResponse,
		},
		{
			name:     "500 maps to upstream error",
			status:   500,
			body:     "internal error",
			sentinel: ErrUpstreamError,
		},
		{
			name:     "503 maps to upstream error",
			status:   503,
			sentinel: ErrUpstreamError,
		},
		{
			name:     "dns timeout maps to timeout",
			err:      &net.DNSError{Err: "i/o timeout", Name: "huggingface.co", IsTimeout: true},
			sentinel: ErrTimeout,
		},
		{
			name:     "context deadline maps to timeout",
			err:      context.DeadlineExceeded,
			sentinel: ErrTimeout,
		},
		{
			name:     "connection refused maps to unavailable",
			err:      errors.New("dial tcp 127.0.0.1:443: connect: connection refused"),
			sentinel: ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapError("model_info", tt.err, tt.status, []byte(tt.body))
			if !errors.Is(got, tt.sentinel) {
				t.Fatalf("wrapError() = %v, want sentinel %v", got, tt.sentinel)
			}

			var he *HubError
			if !errors.As(got, &he) {
				t.Fatalf("wrapError() did not produce *HubError: %T", got)
			}
			if he.Operation != "model_info" {
				t.Errorf("Operation = %q, want %q", he.Operation, "model_info")
			}
			if he.Status != tt.status {
				t.Errorf("Status = %d, want %d", he.Status, tt.status)
			}
		})
	}
}

func TestWrapError_RedactsSecrets(t *testing.T) {
	body := `request failed: token=hf_abcdef123456 sid=deadbeef password=hunter2 Authorization: Bearer hf_secret987 authorization=Bearer hf_inline42`
	got := wrapError("model_card", nil, 500, []byte(body))

	msg := got.Error()
	for _, leak := range []string{"hf_abcdef123456", "deadbeef", "hunter2", "hf_secret987", "hf_inline42"} {
		if strings.Contains(msg, leak) {
			t.Errorf("error message leaks %q: %s", leak, msg)
		}
	}
	if !strings.Contains(msg, "[REDACTED]") {
		t.Errorf("expected [REDACTED] marker in %q", msg)
	}
}

func TestWrapError_TruncatesBody(t *testing.T) {
	body := strings.Repeat("x", 2*maxErrorBody)
	got := wrapError("model_info", nil, 500, []byte(body))

	var he *HubError
	if !errors.As(got, &he) {
		t.Fatalf("wrapError() did not produce *HubError: %T", got)
	}
	if len(he.Body) > maxErrorBody+len("...") {
		t.Errorf("Body length = %d, want <= %d", len(he.Body), maxErrorBody+3)
	}
	if !strings.HasSuffix(he.Body, "...") {
		t.Errorf("truncated body should end with ellipsis, got %q", he.Body[len(he.Body)-8:])
	}
}

func TestBadResponseError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	got := badResponseError("model_info", cause)

	if !errors.Is(got, ErrUpstreamBadResponse) {
		t.Fatalf("badResponseError() = %v, want ErrUpstreamBadResponse", got)
	}
	var he *HubError
	if !errors.As(got, &he) {
		t.Fatalf("badResponseError() did not produce *HubError: %T", got)
	}
	if he.Err != cause {
		t.Errorf("Err = %v, want %v", he.Err, cause)
	}
}
