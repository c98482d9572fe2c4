// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/hub"
	"github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/metrics"
	"github.com/ManuGH/hubgate/internal/modelcard"
)

// Resolve runs the full pipeline for one model: hub metadata, raw card,
// parse, eligibility decision, catalog write. A repository without a README
// is not an error; the model is evaluated without a card.
func Resolve(ctx context.Context, deps Deps, repoID string) (*catalog.Record, error) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	info, err := deps.Client.ModelInfo(ctx, repoID)
	if err != nil {
		// A 404 means the model was renamed or removed upstream; a stale
		// catalog record must not keep serving it.
		if errors.Is(err, hub.ErrNotFound) {
			if delErr := deps.Catalog.Delete(ctx, repoID); delErr != nil {
				logger.Warn().
					Err(delErr).
					Str("repo_id", repoID).
					Msg("dropping vanished model from catalog failed")
			}
		}
		metrics.IncRefreshFailure("info")
		return nil, fmt.Errorf("model info for %q: %w", repoID, err)
	}

	var card *modelcard.Card
	readme, err := deps.Client.ModelCard(ctx, info.RepoID(), "main")
	switch {
	case errors.Is(err, hub.ErrNotFound):
		logger.Debug().
			Str("repo_id", repoID).
			Msg("model has no card, evaluating without one")
	case err != nil:
		metrics.IncRefreshFailure("card")
		return nil, fmt.Errorf("model card for %q: %w", repoID, err)
	default:
		card, err = modelcard.Parse(readme)
		if err != nil {
			metrics.IncCardParseError()
			metrics.IncRefreshFailure("card")
			return nil, fmt.Errorf("parse card for %q: %w", repoID, err)
		}
	}

	decision := modelcard.Evaluate(modelcard.Input{
		Card:        card,
		PipelineTag: info.PipelineTag,
		Private:     info.Private,
		Gated:       info.Gated.Bool(),
		HasToken:    deps.HasToken,
	})
	modelcard.ObserveDecision(ctx, info.RepoID(), decision)
	metrics.IncEligibilityDecision(string(decision.Reason))

	rec := &catalog.Record{
		RepoID:     info.RepoID(),
		Info:       info,
		Card:       card,
		Decision:   decision,
		ResolvedAt: deps.now(),
	}
	if err := deps.Catalog.Put(ctx, rec); err != nil {
		metrics.IncRefreshFailure("store")
		return nil, fmt.Errorf("store record for %q: %w", repoID, err)
	}

	logger.Debug().
		Str("repo_id", rec.RepoID).
		Bool("eligible", decision.Eligible).
		Str("reason", string(decision.Reason)).
		Msg("model resolved")

	return rec, nil
}
