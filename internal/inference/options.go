package inference

import (
	"time"
)

// Defaults for the client. Wait-for-model calls can hold the connection
// open until the model is resident, so the overall timeout is generous
// compared to metadata lookups.
const (
	defaultTimeout      = 2 * time.Minute
	defaultMaxRetries   = 3
	defaultMaxWait      = 30 * time.Second
	defaultLoadingDelay = 2 * time.Second
)

// Options configures a Client and binds it to one model.
type Options struct {
	// Endpoint overrides the inference base URL. Defaults to DefaultEndpoint.
	Endpoint string
	// Token is sent as a bearer credential when set.
	Token string
	// UserAgent identifies this service to the upstream.
	UserAgent string
	// Timeout bounds each request end to end.
	Timeout time.Duration

	// RepoID names the model this client is bound to.
	RepoID string
	// Task optionally overrides the task named by the model metadata. It
	// must be a registered task; when it differs from the metadata a
	// warning is logged and the override wins.
	Task string
	// UseGPU requests GPU execution (paid upstream plans).
	UseGPU bool
	// DisableWait asks the upstream to answer a cold model with a 503
	// loading response instead of holding the request open. Callers then
	// poll via DoWithRetry or surface the estimate to their own clients.
	DisableWait bool

	// MaxRetries bounds DoWithRetry loading retries.
	MaxRetries int
	// MaxWait caps the per-attempt wait derived from the upstream's load
	// estimate.
	MaxWait time.Duration
}

func (o *Options) withDefaults() {
	if o.Endpoint == "" {
		o.Endpoint = DefaultEndpoint
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.MaxWait <= 0 {
		o.MaxWait = defaultMaxWait
	}
}

// wireOptions is the options object of the upstream JSON body.
type wireOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseGPU       bool `json:"use_gpu"`
}

// payload is the upstream JSON body. Parameters are omitted when absent;
// the options object is always carried.
type payload struct {
	Inputs     any         `json:"inputs"`
	Parameters any         `json:"parameters,omitempty"`
	Options    wireOptions `json:"options"`
}
