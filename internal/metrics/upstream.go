// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_upstream_requests_total",
		Help: "Upstream API requests by service, endpoint and outcome",
	}, []string{"service", "endpoint", "outcome"}) // service=hub|inference

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubgate_upstream_request_duration_seconds",
		Help:    "Upstream request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "endpoint"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_upstream_retries_total",
		Help: "Upstream request retries by service",
	}, []string{"service"})

	modelLoadingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubgate_model_loading_total",
		Help: "Inference responses deferred because the model was still loading",
	})

	upstreamRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_upstream_rate_limited_total",
		Help: "Upstream 429 responses by service",
	}, []string{"service"})

	tokenSourceGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hubgate_token_source",
		Help: "Active API token source (explicit=1, env=1, file=1, none=1; others 0)",
	}, []string{"source"})
)

var tokenSources = []string{"explicit", "env", "file", "none"}

func IncUpstreamRequest(service, endpoint, outcome string) {
	upstreamRequestsTotal.WithLabelValues(service, endpoint, outcome).Inc()
}

func ObserveUpstreamDuration(service, endpoint string, seconds float64) {
	upstreamRequestDuration.WithLabelValues(service, endpoint).Observe(seconds)
}

func IncUpstreamRetry(service string) {
	upstreamRetriesTotal.WithLabelValues(service).Inc()
}

func IncModelLoading() { modelLoadingTotal.Inc() }

func IncUpstreamRateLimited(service string) {
	upstreamRateLimitedTotal.WithLabelValues(service).Inc()
}

// SetTokenSource records which token source is active, zeroing the others.
func SetTokenSource(source string) {
	for _, s := range tokenSources {
		value := 0.0
		if s == source {
			value = 1.0
		}
		tokenSourceGauge.WithLabelValues(s).Set(value)
	}
}
