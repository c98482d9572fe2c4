package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/hubgate/internal/hub"
	"github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/metrics"
	"github.com/ManuGH/hubgate/internal/platform/httpx"
	xnet "github.com/ManuGH/hubgate/internal/platform/net"
	"github.com/ManuGH/hubgate/internal/resilience"
	"github.com/ManuGH/hubgate/internal/tasks"
	"github.com/ManuGH/hubgate/internal/telemetry"
	"github.com/ManuGH/hubgate/internal/validate"
)

// DefaultEndpoint is the hosted inference API. Requests go to
// {endpoint}/pipeline/{task}/{repoID}.
const DefaultEndpoint = "https://api-inference.huggingface.co"

// maxResponseBody caps inference outputs; audio and image tasks return
// binary payloads, not just JSON.
const maxResponseBody = 8 << 20

// MetadataClient resolves model metadata during task binding. *hub.Client
// satisfies it.
type MetadataClient interface {
	ModelInfo(ctx context.Context, repoID string) (*hub.ModelInfo, error)
}

// Deps carries the collaborators a Client shares with the rest of the
// process. All fields are optional.
type Deps struct {
	// Metadata resolves the task from the model's pipeline tag. Without it
	// Options.Task must name a registered task.
	Metadata MetadataClient
	// HTTP is a shared client; construction is then allocation-only, which
	// keeps per-request binding in the gateway cheap. The caller owns its
	// transport, so Options.Token and Options.UserAgent are not applied.
	HTTP *http.Client
	// Policy restricts which hosts outbound requests may reach.
	Policy *xnet.OutboundPolicy
	// Breaker guards against hammering a failing upstream.
	Breaker *resilience.CircuitBreaker
}

// Request is one inference call. Inputs follow the task's shape (string,
// list, or object); Parameters are task-specific tuning knobs.
type Request struct {
	Inputs     any
	Parameters any
}

// Response is the upstream answer. Body is raw bytes; JSON for most tasks,
// binary for audio and image outputs, with ContentType telling them apart.
type Response struct {
	Body        json.RawMessage
	ContentType string
	Task        tasks.Task
	RepoID      string
	Duration    time.Duration
	Attempts    int
}

// DecodeJSON unmarshals a JSON body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client runs inference calls for one model and task, mirroring the
// upstream's per-model client surface.
type Client struct {
	task    tasks.Task
	repoID  string
	url     string
	options wireOptions

	http       *http.Client
	policy     *xnet.OutboundPolicy
	breaker    *resilience.CircuitBreaker
	maxRetries int
	maxWait    time.Duration
}

// New binds a client to a model. When deps.Metadata is set the task is
// resolved from the model's pipeline tag with Options.Task as an override;
// an override that differs from the tag wins and logs a warning, matching
// the upstream client. Without metadata, Options.Task must name a
// registered task.
func New(ctx context.Context, opts Options, deps Deps) (*Client, error) {
	opts.withDefaults()

	repoID, err := validate.NormalizeRepoID(opts.RepoID)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(opts.Endpoint, "/")
	if _, ok := xnet.ParseDirectHTTPURL(base); !ok {
		return nil, fmt.Errorf("inference endpoint %q is not a valid http(s) url", base)
	}

	var task tasks.Task
	if deps.Metadata != nil {
		info, err := deps.Metadata.ModelInfo(ctx, repoID)
		if err != nil {
			return nil, fmt.Errorf("resolve task for %s: %w", repoID, err)
		}
		resolved, mismatch, err := tasks.Resolve(info.PipelineTag, opts.Task)
		if err != nil {
			return nil, err
		}
		if mismatch {
			log.FromContext(ctx).Warn().
				Str("repo_id", repoID).
				Str("pipeline_tag", info.PipelineTag).
				Str("task", string(resolved)).
				Msg("running a different task than the one named by the model metadata")
		}
		task = resolved
	} else {
		task, err = tasks.Parse(opts.Task)
		if err != nil {
			return nil, err
		}
	}

	hc := deps.HTTP
	if hc == nil {
		hc = httpx.NewAPIClient(opts.Timeout, 0)
		hc.Transport = httpx.NewAuthTransport(hc.Transport, opts.Token, opts.UserAgent)
	}

	c := &Client{
		task:   task,
		repoID: repoID,
		url:    base + "/pipeline/" + url.PathEscape(string(task)) + "/" + escapeRepoPath(repoID),
		options: wireOptions{
			WaitForModel: !opts.DisableWait,
			UseGPU:       opts.UseGPU,
		},
		http:       hc,
		policy:     deps.Policy,
		breaker:    deps.Breaker,
		maxRetries: opts.MaxRetries,
		maxWait:    opts.MaxWait,
	}

	log.FromContext(ctx).Debug().
		Str("repo_id", repoID).
		Str("task", string(task)).
		Bool("use_gpu", c.options.UseGPU).
		Bool("wait_for_model", c.options.WaitForModel).
		Msg("inference client bound")
	return c, nil
}

// Task reports the task the client is bound to.
func (c *Client) Task() tasks.Task { return c.task }

// RepoID reports the model the client is bound to.
func (c *Client) RepoID() string { return c.repoID }

// Do runs one inference call. A cold model surfaces as *ModelLoadingError
// when the wait option is off; with waiting enabled the upstream holds the
// request until the model answers or the timeout fires.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	return c.do(ctx, req, 1)
}

func (c *Client) do(ctx context.Context, req Request, attempt int) (*Response, error) {
	if c.policy != nil {
		if _, err := xnet.ValidateOutboundURL(ctx, c.url, *c.policy); err != nil {
			return nil, fmt.Errorf("outbound url rejected: %w", err)
		}
	}

	body, err := json.Marshal(payload{
		Inputs:     req.Inputs,
		Parameters: req.Parameters,
		Options:    c.options,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.InferenceAttributes(string(c.task), c.repoID, c.options.WaitForModel, c.options.UseGPU, attempt)...,
	)

	var (
		status      int
		contentType string
		respBody    []byte
	)
	do := func() error {
		r, doErr := c.http.Do(httpReq)
		if doErr != nil {
			return wrapError(c.task, c.repoID, doErr, 0, nil)
		}
		defer func() { _ = r.Body.Close() }()

		b, readErr := io.ReadAll(io.LimitReader(r.Body, maxResponseBody))
		if readErr != nil {
			return wrapError(c.task, c.repoID, readErr, r.StatusCode, nil)
		}
		status = r.StatusCode
		contentType = r.Header.Get("Content-Type")
		respBody = b

		// A loading 503 means the upstream is alive; only genuine server
		// errors count against the breaker.
		if status >= 500 {
			if status == http.StatusServiceUnavailable && classifyUnavailable(c.repoID, b) != nil {
				return nil
			}
			return wrapError(c.task, c.repoID, nil, status, b)
		}
		return nil
	}

	start := time.Now()
	if c.breaker != nil {
		err = c.breaker.Execute(do)
	} else {
		err = do()
	}
	elapsed := time.Since(start)
	metrics.ObserveUpstreamDuration("inference", string(c.task), elapsed.Seconds())

	if err != nil {
		metrics.IncUpstreamRequest("inference", string(c.task), "error")
		return nil, err
	}

	if status != http.StatusOK {
		outcome := "error"
		switch status {
		case http.StatusServiceUnavailable:
			if loading := classifyUnavailable(c.repoID, respBody); loading != nil {
				metrics.IncModelLoading()
				metrics.IncUpstreamRequest("inference", string(c.task), "loading")
				return nil, loading
			}
		case http.StatusTooManyRequests:
			outcome = "rate_limited"
			metrics.IncUpstreamRateLimited("inference")
		}
		metrics.IncUpstreamRequest("inference", string(c.task), outcome)
		return nil, wrapError(c.task, c.repoID, nil, status, respBody)
	}

	metrics.IncUpstreamRequest("inference", string(c.task), "success")
	return &Response{
		Body:        respBody,
		ContentType: contentType,
		Task:        c.task,
		RepoID:      c.repoID,
		Duration:    elapsed,
		Attempts:    attempt,
	}, nil
}

// DoWithRetry runs Do and, while the model loads, waits out the upstream's
// estimate (capped by MaxWait, aborted by ctx) before trying again. Any
// error other than loading returns immediately.
func (c *Client) DoWithRetry(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	var delay time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			metrics.IncUpstreamRetry("inference")
		}

		resp, err := c.do(ctx, req, attempt+1)
		if err == nil {
			return resp, nil
		}

		var loading *ModelLoadingError
		if !errors.As(err, &loading) {
			return nil, err
		}
		lastErr = err

		delay = loading.RetryAfter()
		if delay <= 0 {
			delay = defaultLoadingDelay
		}
		if delay > c.maxWait {
			delay = c.maxWait
		}
	}
	return nil, fmt.Errorf("model still loading after %d retries: %w", c.maxRetries, lastErr)
}

// escapeRepoPath escapes each path segment of a repository identifier.
func escapeRepoPath(repoID string) string {
	parts := strings.Split(repoID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
