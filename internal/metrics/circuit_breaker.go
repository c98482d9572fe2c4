// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hubgate_circuit_breaker_state",
		Help: "Breaker state per upstream, one-hot across closed/half-open/open",
	}, []string{"component", "state"}) // component=hub|inference

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_circuit_breaker_trips_total",
		Help: "Transitions to the open state by cause",
	}, []string{"component", "reason"}) // reason=threshold_exceeded|half_open_failure
)

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState marks state active for the component and zeroes
// the other states, so dashboards can sum the gauge per state.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip counts a transition to open.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
