package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuGH/hubgate/internal/config"
	hglog "github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/metrics"
	"github.com/ManuGH/hubgate/internal/modelcard"
)

// Refresh resolves every watched model against the hub and rewrites the
// catalog snapshot. One model failing does not abort the others; failures
// are counted and reported in the returned Status.
func Refresh(ctx context.Context, cfg config.Config, deps Deps) (*Status, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	ctx = hglog.ContextWithJobID(ctx, uuid.NewString())
	logger := hglog.WithComponentFromContext(ctx, "jobs")

	models := cfg.Refresh.Models
	start := deps.now()

	logger.Info().
		Str("event", "refresh.start").
		Int("models", len(models)).
		Msg("starting catalog refresh")

	if len(models) == 0 {
		logger.Warn().
			Str("event", "refresh.empty").
			Msg("no models configured, nothing to resolve")
	}

	// Worker pool semaphore
	maxPar := clampConcurrency(cfg.Refresh.Concurrency, 4, 64)
	sem := make(chan struct{}, maxPar)
	results := make(chan modelResult, len(models))
	var wg sync.WaitGroup

	for _, repoID := range models {
		id := repoID
		wg.Go(func() {
			// Acquire semaphore
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results <- modelResult{repoID: id, err: err}
				return
			}

			rec, err := Resolve(ctx, deps, id)
			results <- modelResult{repoID: id, record: rec, err: err}
		})
	}

	// Close results when all goroutines complete
	go func() {
		wg.Wait()
		close(results)
	}()

	status := &Status{LastRun: start}
	optOuts := 0
	for res := range results {
		status.Models++
		if res.err != nil {
			status.Failed++
			metrics.IncRefreshModel("error")
			logger.Error().
				Err(res.err).
				Str("event", "refresh.model_failed").
				Str("repo_id", res.repoID).
				Msg("model refresh failed")
			continue
		}
		metrics.IncRefreshModel("ok")
		if res.record.Decision.Eligible {
			status.Eligible++
		}
		if res.record.Decision.Reason == modelcard.ReasonCardOptOut {
			optOuts++
		}
	}

	metrics.RecordModelsTracked(len(models))
	metrics.RecordCardOptOuts(optOuts)

	if status.Failed > 0 {
		status.Error = fmt.Sprintf("%d of %d models failed", status.Failed, status.Models)
	}

	if path := cfg.Catalog.SnapshotPath; path != "" {
		if err := deps.Catalog.Export(ctx, path); err != nil {
			metrics.IncRefreshFailure("snapshot")
			metrics.ObserveRefreshDuration(deps.now().Sub(start).Seconds())
			logger.Error().
				Err(err).
				Str("event", "refresh.snapshot_failed").
				Str("path", path).
				Msg("snapshot export failed")
			return status, fmt.Errorf("export snapshot: %w", err)
		}
		logger.Info().
			Str("event", "refresh.snapshot").
			Str("path", path).
			Msg("catalog snapshot written")
	}

	metrics.ObserveRefreshDuration(deps.now().Sub(start).Seconds())

	logger.Info().
		Str("event", "refresh.success").
		Int("models", status.Models).
		Int("eligible", status.Eligible).
		Int("failed", status.Failed).
		Msg("refresh completed")

	return status, nil
}

func validateDeps(deps Deps) error {
	if deps.Client == nil {
		return fmt.Errorf("jobs: hub client is required")
	}
	if deps.Catalog == nil {
		return fmt.Errorf("jobs: catalog store is required")
	}
	return nil
}

// clampConcurrency ensures concurrency is within sane bounds [1, maxVal]
func clampConcurrency(value, defaultValue, maxVal int) int {
	if value < 1 {
		if defaultValue < 1 {
			return 1
		}
		return defaultValue
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
