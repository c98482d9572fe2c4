// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldRepoID    = "repo_id"
	FieldTask      = "task"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOutcome   = "outcome"

	// Upstream fields
	FieldEndpoint   = "endpoint"
	FieldStatusCode = "status_code"
	FieldAttempt    = "attempt"

	// Eligibility fields
	FieldDecision = "decision"
	FieldReason   = "reason"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
