// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package usage records served inference requests in SQLite so the
// status API can report recent activity and per-model volume without
// depending on the metrics backend.
package usage

import (
	"time"

	"github.com/ManuGH/hubgate/internal/tasks"
)

// Status classifies how a proxied request ended.
type Status string

const (
	StatusOK      Status = "ok"      // Upstream answered 200
	StatusError   Status = "error"   // Upstream or transport failure
	StatusLoading Status = "loading" // Model cold, 503 relayed to the client
	StatusDenied  Status = "denied"  // Eligibility gate refused the model
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// Entry is one served request.
type Entry struct {
	ID         int64      `json:"id"`
	TS         time.Time  `json:"ts"`
	RepoID     string     `json:"repo_id"`
	Task       tasks.Task `json:"task"`
	Status     Status     `json:"status"`
	DurationMS int64      `json:"duration_ms"`
	ColdStart  bool       `json:"cold_start"`
	ClientIP   string     `json:"client_ip,omitempty"`
}

// ModelCount aggregates request volume for one repository.
type ModelCount struct {
	RepoID string `json:"repo_id"`
	Count  int64  `json:"count"`
}
