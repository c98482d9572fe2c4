// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/metrics"
)

// Snapshot is the exported catalog document. Models are sorted by
// repository id so consecutive exports diff cleanly.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Models      []*Record `json:"models"`
}

// Export writes a snapshot of the catalog to path. The write is atomic;
// readers never observe a partial file.
func (s *Store) Export(ctx context.Context, path string) error {
	records, err := s.List(ctx)
	if err != nil {
		metrics.IncCatalogSnapshot("error")
		return fmt.Errorf("collect records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RepoID < records[j].RepoID
	})

	buf, err := json.MarshalIndent(Snapshot{
		GeneratedAt: time.Now().UTC(),
		Count:       len(records),
		Models:      records,
	}, "", "  ")
	if err != nil {
		metrics.IncCatalogSnapshot("error")
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		metrics.IncCatalogSnapshot("error")
		return fmt.Errorf("create pending snapshot file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			log.FromContext(ctx).Debug().Err(err).Msg("cleanup pending snapshot file")
		}
	}()

	if _, err := pendingFile.Write(append(buf, '\n')); err != nil {
		metrics.IncCatalogSnapshot("error")
		return fmt.Errorf("write snapshot data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		metrics.IncCatalogSnapshot("error")
		return fmt.Errorf("atomically replace snapshot file: %w", err)
	}

	metrics.IncCatalogSnapshot("success")
	return nil
}
