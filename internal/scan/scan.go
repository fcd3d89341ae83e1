package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"offload/internal/logger"
	"offload/internal/model"

	"go.uber.org/zap"
)

// Index is the snapshot of one source tree taken by a single scan. Entries
// appear in walk order. Skipped holds subtrees the walk could not read;
// an unreadable subdirectory never fails the scan as a whole.
type Index struct {
	Root    string
	Entries []model.FileEntry
	Skipped []model.SkippedPath
}

// Build walks root and snapshots every regular file that passes the name
// filter and none of the ignore rules. Symlinks and special files are
// skipped silently. Ignore rules match single path components; a matching
// directory name prunes its subtree.
func Build(root, nameFilter string, rules []model.IgnoreRule) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}

	if info, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("source directory not found: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", absRoot)
	}

	idx := &Index{Root: absRoot}

	walkErr := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			idx.Skipped = append(idx.Skipped, model.SkippedPath{Path: path, Reason: err.Error()})
			logger.Log.Warn("scan skipped unreadable path",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if path != absRoot && matchesIgnore(name, rules) {
				return fs.SkipDir
			}
			return nil
		}

		// Regular files only; symlinks and specials are not an error.
		if !d.Type().IsRegular() {
			logger.Log.Debug("scan skipped non-regular file",
				zap.String("path", path))
			return nil
		}

		if matchesIgnore(name, rules) || !matchesName(name, nameFilter) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			idx.Skipped = append(idx.Skipped, model.SkippedPath{Path: path, Reason: err.Error()})
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			idx.Skipped = append(idx.Skipped, model.SkippedPath{Path: path, Reason: err.Error()})
			return nil
		}

		idx.Entries = append(idx.Entries, model.FileEntry{
			RelPath: rel,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})

		return nil
	})

	if walkErr != nil {
		return nil, fmt.Errorf("scan failed: %w", walkErr)
	}

	return idx, nil
}

func matchesName(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(name))
	return err == nil && matched
}

func matchesIgnore(name string, rules []model.IgnoreRule) bool {
	lower := strings.ToLower(name)

	for _, rule := range rules {
		for _, prefix := range rule.Prefixes {
			if strings.HasPrefix(lower, strings.ToLower(prefix)) {
				return true
			}
		}
		for _, suffix := range rule.Suffixes {
			if strings.HasSuffix(lower, strings.ToLower(suffix)) {
				return true
			}
		}
	}

	return false
}
