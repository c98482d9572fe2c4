// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the hubgate application.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Hub attributes
	HubRepoIDKey   = "hub.repo_id"
	HubRevisionKey = "hub.revision"
	HubEndpointKey = "hub.endpoint"
	HubPrivateKey  = "hub.private"
	HubGatedKey    = "hub.gated"

	// Inference attributes
	InferenceTaskKey          = "inference.task"
	InferenceRepoIDKey        = "inference.repo_id"
	InferenceWaitForModelKey  = "inference.wait_for_model"
	InferenceUseGPUKey        = "inference.use_gpu"
	InferenceEstimatedTimeKey = "inference.estimated_time_s"
	InferenceAttemptKey       = "inference.attempt"

	// Refresh attributes
	RefreshModelsKey      = "refresh.models"
	RefreshFailedKey      = "refresh.failed"
	RefreshConcurrencyKey = "refresh.concurrency"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// HubAttributes creates hub-lookup span attributes.
func HubAttributes(repoID, revision, endpoint string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if repoID != "" {
		attrs = append(attrs, attribute.String(HubRepoIDKey, repoID))
	}
	if revision != "" {
		attrs = append(attrs, attribute.String(HubRevisionKey, revision))
	}
	if endpoint != "" {
		attrs = append(attrs, attribute.String(HubEndpointKey, endpoint))
	}
	return attrs
}

// InferenceAttributes creates inference-call span attributes.
func InferenceAttributes(task, repoID string, waitForModel, useGPU bool, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(InferenceTaskKey, task),
		attribute.String(InferenceRepoIDKey, repoID),
		attribute.Bool(InferenceWaitForModelKey, waitForModel),
		attribute.Bool(InferenceUseGPUKey, useGPU),
		attribute.Int(InferenceAttemptKey, attempt),
	}
}

// RefreshAttributes creates catalog-refresh span attributes.
func RefreshAttributes(models, failed, concurrency int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RefreshModelsKey, models),
		attribute.Int(RefreshFailedKey, failed),
		attribute.Int(RefreshConcurrencyKey, concurrency),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
