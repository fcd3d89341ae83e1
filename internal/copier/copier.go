package copier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"offload/internal/logger"
	"offload/internal/model"
	"offload/internal/util"

	"go.uber.org/zap"
)

type FileError struct {
	Entry model.FileEntry
	Err   error
}

// Result reports one Copy batch. Copied preserves plan order, which later
// fixes the eviction order for the run.
type Result struct {
	Copied  model.SyncPlan
	Failed  []FileError
	Elapsed time.Duration
}

type Engine struct {
	targetRoot string
}

func New(targetRoot string) (*Engine, error) {
	abs, err := filepath.Abs(targetRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid target path: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target dir: %w", err)
	}

	return &Engine{targetRoot: abs}, nil
}

// Copy materializes the plan sequentially. A failing file is recorded and
// the batch moves on; one bad file never aborts the rest.
func (e *Engine) Copy(plan model.SyncPlan) Result {
	start := time.Now()
	result := Result{}

	for _, entry := range plan {
		dst := filepath.Join(e.targetRoot, entry.RelPath)

		if err := e.copyFile(entry, dst); err != nil {
			result.Failed = append(result.Failed, FileError{Entry: entry, Err: err})
			logger.Log.Error("copy failed",
				zap.String("src", entry.AbsPath),
				zap.String("dst", dst),
				zap.Error(err))
			continue
		}

		result.Copied = append(result.Copied, entry)
		logger.Log.Info("copied",
			zap.String("src", entry.AbsPath),
			zap.String("dst", dst),
			zap.Int64("bytes", entry.Size))
	}

	result.Elapsed = time.Since(start)
	return result
}

func (e *Engine) copyFile(entry model.FileEntry, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	srcFile, err := os.Open(entry.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to open src: %w", err)
	}

	defer func(srcFile *os.File) {
		_ = srcFile.Close()
	}(srcFile)

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat src: %w", err)
	}

	tmpPath := dst + ".offload.tmp"
	dstFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("failed to open dst: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		_ = util.RemoveIfExists(tmpPath)
		return fmt.Errorf("failed to copy: %w", err)
	}

	if err := dstFile.Close(); err != nil {
		_ = util.RemoveIfExists(tmpPath)
		return fmt.Errorf("failed to close dst: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = util.RemoveIfExists(tmpPath)
		return fmt.Errorf("failed to rename tmp: %w", err)
	}

	// The target must carry the source mtime or the next run's freshness
	// comparison would re-plan every file.
	if err := os.Chtimes(dst, time.Now(), entry.ModTime); err != nil {
		return fmt.Errorf("failed to preserve mtime: %w", err)
	}

	return nil
}
