package report

import (
	"fmt"
	"os"
	"time"

	"github.com/redadsync/redadsync/internal/errors"
)

// PruneResult lists what a Prune run removed.
type PruneResult struct {
	Removed []Entry
	Kept    int
}

// Prune deletes exports whose modification time is older than retention.
// Files that do not look like exports are never touched.
func Prune(dir string, retention time.Duration, now time.Time) (PruneResult, error) {
	if retention <= 0 {
		return PruneResult{}, fmt.Errorf("retention must be positive")
	}

	entries, err := History(dir)
	if err != nil {
		return PruneResult{}, err
	}

	cutoff := now.Add(-retention)
	var result PruneResult
	for _, e := range entries {
		if !e.ModTime.Before(cutoff) {
			result.Kept++
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return result, &errors.ErrFileWrite{Path: e.Path, Err: err}
		}
		result.Removed = append(result.Removed, e)
	}
	return result, nil
}
