// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Business metrics
	modelsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubgate_models_tracked",
		Help: "Number of models in the catalog (last refresh)",
	})

	eligibilityDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_eligibility_decisions_total",
		Help: "Eligibility decisions by reason",
	}, []string{"reason"}) // reason=card_opt_out|requires_token|no_pipeline_task|unsupported_task|ok

	cardParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubgate_card_parse_errors_total",
		Help: "Total number of model card frontmatter parse failures",
	})

	cardOptOuts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubgate_card_opt_outs",
		Help: "Models whose card disables hosted inference (last refresh)",
	})

	catalogSnapshotTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_catalog_snapshot_total",
		Help: "Catalog snapshot export attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	// Operational metrics
	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubgate_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_config_reloads_total",
		Help: "Configuration reload attempts by outcome",
	}, []string{"outcome"}) // outcome=applied|rejected|invalid

	// Error metrics for refresh stages
	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_refresh_failures_total",
		Help: "Total number of refresh failures by stage",
	}, []string{"stage"}) // stage=info|card|evaluate|store|snapshot

	refreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hubgate_refresh_duration_seconds",
		Help:    "Time spent refreshing the tracked model catalog",
		Buckets: prometheus.DefBuckets,
	})

	refreshModelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_refresh_models_total",
		Help: "Models processed during refresh by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

func RecordModelsTracked(n int) { modelsTracked.Set(float64(n)) }
func RecordCardOptOuts(n int)   { cardOptOuts.Set(float64(n)) }
func IncCardParseError()        { cardParseErrors.Inc() }
func IncConfigValidationError() { configValidationErrors.Inc() }
func IncConfigReload(outcome string) {
	configReloads.WithLabelValues(outcome).Inc()
}

func IncEligibilityDecision(reason string) {
	eligibilityDecisions.WithLabelValues(reason).Inc()
}

func IncCatalogSnapshot(outcome string) {
	catalogSnapshotTotal.WithLabelValues(outcome).Inc()
}

func IncRefreshFailure(stage string) { refreshFailuresTotal.WithLabelValues(stage).Inc() }

func IncRefreshModel(outcome string) {
	refreshModelsTotal.WithLabelValues(outcome).Inc()
}

func ObserveRefreshDuration(seconds float64) {
	refreshDurationSeconds.Observe(seconds)
}

// GetModelsTracked returns the current value of the gauge (for testing).
func GetModelsTracked() float64 {
	var m dto.Metric
	if err := modelsTracked.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// GetCardOptOuts returns the current value of the gauge (for testing).
func GetCardOptOuts() float64 {
	var m dto.Metric
	if err := cardOptOuts.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
