package copier_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"offload/internal/copier"
	"offload/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceEntry(t *testing.T, root, rel, content string, mod time.Time) model.FileEntry {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	require.NoError(t, os.Chtimes(abs, mod, mod))

	return model.FileEntry{
		RelPath: rel,
		AbsPath: abs,
		Size:    int64(len(content)),
		ModTime: mod,
	}
}

func TestCopyCreatesDirsAndPreservesMtime(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mod := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	plan := model.SyncPlan{
		sourceEntry(t, src, "a.txt", "hello", mod),
		sourceEntry(t, src, filepath.Join("deep", "nested", "b.txt"), "world", mod.Add(time.Hour)),
	}

	engine, err := copier.New(dst)
	require.NoError(t, err)

	result := engine.Copy(plan)
	require.Empty(t, result.Failed)
	require.Len(t, result.Copied, 2)

	for _, e := range plan {
		target := filepath.Join(dst, e.RelPath)
		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, e.Size, int64(len(data)))

		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(e.ModTime),
			"target mtime %v should equal source mtime %v", info.ModTime(), e.ModTime)
	}
}

func TestCopyOverwritesExistingTarget(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mod := time.Now().Add(-time.Minute).Truncate(time.Second)

	entry := sourceEntry(t, src, "a.txt", "new content", mod)
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.txt"), []byte("old"), 0644))

	engine, err := copier.New(dst)
	require.NoError(t, err)

	result := engine.Copy(model.SyncPlan{entry})
	require.Empty(t, result.Failed)

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestCopyPartialFailureContinues(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mod := time.Now().Add(-time.Minute)

	good1 := sourceEntry(t, src, "good1.txt", "a", mod)
	bad := sourceEntry(t, src, "bad.txt", "b", mod)
	good2 := sourceEntry(t, src, "good2.txt", "c", mod)

	// Removing the source after planning simulates an I/O failure mid-batch.
	require.NoError(t, os.Remove(bad.AbsPath))

	engine, err := copier.New(dst)
	require.NoError(t, err)

	result := engine.Copy(model.SyncPlan{good1, bad, good2})

	require.Len(t, result.Copied, 2)
	assert.Equal(t, "good1.txt", result.Copied[0].RelPath)
	assert.Equal(t, "good2.txt", result.Copied[1].RelPath)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "bad.txt", result.Failed[0].Entry.RelPath)
	assert.Error(t, result.Failed[0].Err)

	_, err = os.Stat(filepath.Join(dst, "bad.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFailedCopyCleansUpTempFile(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	entry := sourceEntry(t, src, "a.txt", "x", time.Now().Add(-time.Minute))

	// A non-empty directory squatting on the target path makes the final
	// rename fail after the temp file was fully written.
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "a.txt", "inner"), 0755))

	engine, err := copier.New(dst)
	require.NoError(t, err)

	result := engine.Copy(model.SyncPlan{entry})
	require.Len(t, result.Failed, 1)

	matches, err := filepath.Glob(filepath.Join(dst, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCopyEmptyPlan(t *testing.T) {
	engine, err := copier.New(t.TempDir())
	require.NoError(t, err)

	result := engine.Copy(nil)
	assert.Empty(t, result.Copied)
	assert.Empty(t, result.Failed)
}

func TestCopyLeavesNoTempFiles(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	entry := sourceEntry(t, src, "a.txt", "x", time.Now().Add(-time.Minute))

	engine, err := copier.New(dst)
	require.NoError(t, err)
	require.Empty(t, engine.Copy(model.SyncPlan{entry}).Failed)

	matches, err := filepath.Glob(filepath.Join(dst, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
