package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/hubgate/internal/cache"
	"github.com/ManuGH/hubgate/internal/metrics"
	"github.com/ManuGH/hubgate/internal/platform/httpx"
	xnet "github.com/ManuGH/hubgate/internal/platform/net"
	"github.com/ManuGH/hubgate/internal/resilience"
	"github.com/ManuGH/hubgate/internal/validate"
)

// DefaultEndpoint is the public hub instance.
const DefaultEndpoint = "https://huggingface.co"

// DefaultRevision is used when the caller does not pin one.
const DefaultRevision = "main"

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 5 * time.Minute

	// Response caps keep a misbehaving upstream from exhausting memory.
	maxInfoBody = 4 << 20
	maxCardBody = 1 << 20
)

// Options configures a Client.
type Options struct {
	// Endpoint overrides the hub base URL. Defaults to DefaultEndpoint.
	Endpoint string
	// Token is sent as a bearer credential when set.
	Token string
	// UserAgent identifies this service to the hub.
	UserAgent string
	// Timeout bounds each request end to end.
	Timeout time.Duration
	// Cache stores metadata and cards between refreshes. Optional.
	Cache cache.Cache
	// CacheTTL bounds how long cached hub responses are trusted.
	CacheTTL time.Duration
	// Policy restricts which hosts outbound requests may reach. Optional.
	Policy *xnet.OutboundPolicy
	// Breaker guards the hub against hammering a failing upstream. Optional.
	Breaker *resilience.CircuitBreaker
}

// Client talks to the hub metadata API.
type Client struct {
	base     string
	http     *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	policy   *xnet.OutboundPolicy
	breaker  *resilience.CircuitBreaker

	// group collapses concurrent lookups for the same repo into one
	// upstream request; refresh fans out and handlers race it.
	group singleflight.Group
}

// New creates a hub client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.Endpoint, "/")
	if base == "" {
		base = DefaultEndpoint
	}
	if _, ok := xnet.ParseDirectHTTPURL(base); !ok {
		return nil, fmt.Errorf("hub endpoint %q is not a valid http(s) url", base)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := httpx.NewClient(timeout)
	hc.Transport = httpx.NewAuthTransport(hc.Transport, opts.Token, opts.UserAgent)

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	c := &Client{
		base:     base,
		http:     hc,
		cache:    opts.Cache,
		cacheTTL: ttl,
		policy:   opts.Policy,
		breaker:  opts.Breaker,
	}
	if c.cache == nil {
		c.cache = cache.NewNoOpCache()
	}
	return c, nil
}

// ModelInfo fetches the hub metadata for a repository.
func (c *Client) ModelInfo(ctx context.Context, repoID string) (*ModelInfo, error) {
	repoID, err := validate.NormalizeRepoID(repoID)
	if err != nil {
		return nil, err
	}

	if v, ok := c.cache.Get(cache.InfoKey(repoID)); ok {
		switch cached := v.(type) {
		case *ModelInfo:
			return cached, nil
		case []byte:
			// The redis backend hands back raw JSON.
			var info ModelInfo
			if err := json.Unmarshal(cached, &info); err == nil {
				return &info, nil
			}
		}
	}

	v, err, _ := c.group.Do(repoID, func() (any, error) {
		body, err := c.get(ctx, "model_info", c.base+"/api/models/"+escapeRepoPath(repoID))
		if err != nil {
			return nil, err
		}

		var info ModelInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return nil, badResponseError("model_info", err)
		}

		c.cache.Set(cache.InfoKey(repoID), &info, c.cacheTTL)
		return &info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModelInfo), nil
}

// ModelCard fetches the raw README for a repository. An empty revision
// selects the default branch. A repository without a README yields
// ErrNotFound; callers decide whether that means "no card".
func (c *Client) ModelCard(ctx context.Context, repoID, revision string) ([]byte, error) {
	repoID, err := validate.NormalizeRepoID(repoID)
	if err != nil {
		return nil, err
	}
	if revision == "" {
		revision = DefaultRevision
	}
	if err := validate.Revision(revision); err != nil {
		return nil, err
	}

	key := cache.CardKey(repoID + "@" + revision)
	if v, ok := c.cache.Get(key); ok {
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}

	u := c.base + "/" + escapeRepoPath(repoID) + "/raw/" + url.PathEscape(revision) + "/README.md"
	body, err := c.get(ctx, "model_card", u)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, body, c.cacheTTL)
	return body, nil
}

// get performs one policy-checked GET. Transport failures and 5xx
// responses count against the breaker; 4xx responses do not, a missing
// model is not an outage.
func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	if c.policy != nil {
		if _, err := xnet.ValidateOutboundURL(ctx, rawURL, *c.policy); err != nil {
			return nil, fmt.Errorf("outbound url rejected: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	maxBody := int64(maxInfoBody)
	if op == "model_card" {
		maxBody = maxCardBody
	}

	var resp *http.Response
	do := func() error {
		r, doErr := c.http.Do(req)
		if doErr != nil {
			return wrapError(op, doErr, 0, nil)
		}
		if r.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
			_ = r.Body.Close()
			return wrapError(op, nil, r.StatusCode, body)
		}
		resp = r
		return nil
	}

	start := time.Now()
	if c.breaker != nil {
		err = c.breaker.Execute(do)
	} else {
		err = do()
	}
	metrics.ObserveUpstreamDuration("hub", op, time.Since(start).Seconds())

	if err != nil {
		metrics.IncUpstreamRequest("hub", op, "error")
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		metrics.IncUpstreamRequest("hub", op, "error")
		return nil, wrapError(op, err, resp.StatusCode, nil)
	}

	if resp.StatusCode != http.StatusOK {
		outcome := "error"
		if resp.StatusCode == http.StatusTooManyRequests {
			outcome = "rate_limited"
			metrics.IncUpstreamRateLimited("hub")
		}
		metrics.IncUpstreamRequest("hub", op, outcome)
		return nil, wrapError(op, nil, resp.StatusCode, body)
	}

	metrics.IncUpstreamRequest("hub", op, "success")
	return body, nil
}

// IsCircuitOpen reports whether err came from the breaker rejecting the
// call without reaching the hub.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen)
}

// escapeRepoPath escapes each path segment of a repository identifier.
func escapeRepoPath(repoID string) string {
	parts := strings.Split(repoID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
