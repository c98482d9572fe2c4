// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"
)

// PingChecker adapts a Ping-style dependency (the usage store, the hub
// probe) into a Checker. A bounded timeout keeps readiness latency low.
type PingChecker struct {
	name    string
	timeout time.Duration
	ping    func(ctx context.Context) error
}

// NewPingChecker creates a checker around a ping function.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, timeout: 2 * time.Second, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "no probe configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ping(checkCtx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok"}
}

// CountChecker reports healthy when the counting function succeeds. Used
// for the catalog store, where a zero count is degraded, not broken: the
// gateway answers but has nothing to serve yet.
type CountChecker struct {
	name  string
	count func(ctx context.Context) (int, error)
}

// NewCountChecker creates a checker around a count function.
func NewCountChecker(name string, count func(ctx context.Context) (int, error)) *CountChecker {
	return &CountChecker{name: name, count: count}
}

func (c *CountChecker) Name() string { return c.name }

func (c *CountChecker) Check(ctx context.Context) CheckResult {
	if c.count == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "no store configured"}
	}

	n, err := c.count(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if n == 0 {
		return CheckResult{Status: StatusDegraded, Message: "catalog is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok"}
}

// LastRunChecker reports on the most recent refresh run.
type LastRunChecker struct {
	maxAge     time.Duration
	getLastRun func() (time.Time, string)
}

// NewLastRunChecker creates a checker for the last refresh run. maxAge
// bounds how stale a successful run may be before the checker degrades;
// zero means never.
func NewLastRunChecker(maxAge time.Duration, getLastRun func() (time.Time, string)) *LastRunChecker {
	return &LastRunChecker{maxAge: maxAge, getLastRun: getLastRun}
}

func (c *LastRunChecker) Name() string { return "last_refresh" }

func (c *LastRunChecker) Check(_ context.Context) CheckResult {
	lastRun, lastError := c.getLastRun()

	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no refresh has completed yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last refresh reported failures",
		}
	}

	if c.maxAge > 0 && time.Since(lastRun) > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "last successful refresh is stale",
		}
	}

	return CheckResult{Status: StatusHealthy, Message: "last refresh successful"}
}
