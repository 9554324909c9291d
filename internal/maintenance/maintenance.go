// Package maintenance holds destructive housekeeping helpers used by
// the reset command.
package maintenance

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// WipeArtifacts deletes every record's scraped/ directory under
// <root>/bounties. Catalog metadata is untouched. Returns the number
// of directories removed.
func WipeArtifacts(rootDir string, logger *slog.Logger) (int, error) {
	bounties := filepath.Join(rootDir, "bounties")
	entries, err := os.ReadDir(bounties)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read catalog dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scraped := filepath.Join(bounties, entry.Name(), "scraped")
		if _, err := os.Stat(scraped); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(scraped); err != nil {
			return removed, fmt.Errorf("remove %s: %w", scraped, err)
		}
		logger.Info("removed archived content", "dir", scraped)
		removed++
	}
	return removed, nil
}
