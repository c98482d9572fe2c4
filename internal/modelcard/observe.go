package modelcard

import (
	"context"

	"github.com/ManuGH/hubgate/internal/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability Keys (Frozen)
const (
	AttrEligible = "hubgate.eligibility.eligible"
	AttrReason   = "hubgate.eligibility.reason"
	AttrTask     = "hubgate.eligibility.task"
	AttrRepoID   = "hubgate.repoId"
)

// Frozen Whitelist for Enforcement
var allowedAttributes = map[string]bool{
	AttrEligible: true,
	AttrReason:   true,
	AttrTask:     true,
	AttrRepoID:   true,
}

// ObserveDecision records one eligibility decision on the current span and
// the decision counter. Attributes are strictly whitelisted.
func ObserveDecision(ctx context.Context, repoID string, dec Decision) {
	span := trace.SpanFromContext(ctx)

	// Runtime provider lookup, no init-time rebinding.
	meter := otel.GetMeterProvider().Meter("hubgate.eligibility")

	decisionTotal, _ := meter.Int64Counter(
		"hubgate_eligibility_decision_total",
		metric.WithDescription("Total eligibility decisions made"),
	)
	decisionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("eligible", dec.Eligible),
		attribute.String("reason", string(dec.Reason)),
	))

	attrs := []attribute.KeyValue{
		attribute.Bool(AttrEligible, dec.Eligible),
		attribute.String(AttrReason, string(dec.Reason)),
		attribute.String(AttrTask, dec.Task.String()),
		attribute.String(AttrRepoID, repoID),
	}

	// Strict whitelist enforcement.
	for _, kv := range attrs {
		if !allowedAttributes[string(kv.Key)] {
			log.FromContext(ctx).Error().
				Str("key", string(kv.Key)).
				Msg("observability invariant violation: attribute not in whitelist")
			return
		}
	}

	span.SetAttributes(attrs...)
}

// StartEligibilitySpan wraps span creation for an eligibility evaluation.
func StartEligibilitySpan(ctx context.Context) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer("hubgate.eligibility")
	return tracer.Start(ctx, "hubgate.eligibility")
}
