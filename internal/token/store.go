// SPDX-License-Identifier: MIT

package token

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/hubgate/internal/log"
)

// FileName is the token file name inside the data directory.
const FileName = "token"

// Path returns the token file path for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Save writes the token file atomically with owner-only permissions.
// fsync before rename prevents a torn file on power failure.
func Save(ctx context.Context, dataDir, tok string) error {
	logger := log.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(Path(dataDir), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending token file: %w", err)
	}
	defer func() {
		// Cleanup on error - renameio removes temp file if not committed
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending token file")
		}
	}()

	if _, err := io.WriteString(pendingFile, tok+"\n"); err != nil {
		return fmt.Errorf("write token data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace token file: %w", err)
	}

	return nil
}

// Load reads the token file. A missing file yields an empty token, not
// an error.
func Load(dataDir string) (string, error) {
	b, err := os.ReadFile(Path(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Delete removes the token file. Deleting an absent file is a no-op.
func Delete(dataDir string) error {
	err := os.Remove(Path(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
