// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"time"

	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/hub"
)

// HubClient defines the hub operations a refresh needs, allowing mocks in tests.
type HubClient interface {
	ModelInfo(ctx context.Context, repoID string) (*hub.ModelInfo, error)
	ModelCard(ctx context.Context, repoID, revision string) ([]byte, error)
}

// Deps holds all dependencies for the refresh operation.
type Deps struct {
	Client   HubClient
	Catalog  *catalog.Store
	HasToken bool             // an upstream token is configured or stored
	Clock    func() time.Time // nil means time.Now
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock().UTC()
	}
	return time.Now().UTC()
}

// Status represents the outcome of the last refresh run.
type Status struct {
	LastRun  time.Time `json:"last_run"`
	Models   int       `json:"models"`
	Eligible int       `json:"eligible"`
	Failed   int       `json:"failed"`
	Error    string    `json:"error,omitempty"`
}

// modelResult holds the result of refreshing a single model.
type modelResult struct {
	repoID string
	record *catalog.Record
	err    error
}
