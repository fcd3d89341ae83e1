package diff

import (
	"os"
	"path/filepath"
	"time"

	"offload/internal/model"
)

// SelectForCopy picks the entries that need copying. An entry is included
// only when it is newer than the cutoff AND its target copy is absent or
// strictly older. The cutoff alone cannot catch a target that was already
// brought current through another channel, hence the second check.
func SelectForCopy(entries []model.FileEntry, targetRoot string, cutoff time.Time) (model.SyncPlan, int) {
	var plan model.SyncPlan
	skipped := 0

	for _, e := range entries {
		if !e.ModTime.After(cutoff) {
			skipped++
			continue
		}

		targetPath := filepath.Join(targetRoot, e.RelPath)
		info, err := os.Stat(targetPath)
		if err == nil && !e.ModTime.After(info.ModTime()) {
			// Target is as new as the source; never overwrite it.
			skipped++
			continue
		}

		plan = append(plan, e)
	}

	return plan, skipped
}

// SelectForEvict maps the files copied in the current run to their target
// paths, in copy order. Eviction only ever operates on this run's output.
func SelectForEvict(copied model.SyncPlan, targetRoot string) []string {
	paths := make([]string, 0, len(copied))
	for _, e := range copied {
		paths = append(paths, filepath.Join(targetRoot, e.RelPath))
	}

	return paths
}
