package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"offload/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tasksYAML = `tasks:
  - label: docs
    name: Documents
    source: /home/me/docs
    target: /home/me/Dropbox/docs
    name_filter: "*.pdf"
    ignore:
      - startswith: [".", "~$"]
        endswith: [".tmp"]
    last_copy_time: 2026-03-01T12:00:00Z
  - label: photos
    source: /home/me/photos
    target: /home/me/Dropbox/photos
`

func writeTasks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTasks(t *testing.T) {
	tasks, err := config.LoadTasks(writeTasks(t, tasksYAML))
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	docs := tasks[0]
	assert.Equal(t, "docs", docs.Label)
	assert.Equal(t, "Documents", docs.Name)
	assert.Equal(t, "/home/me/docs", docs.Source)
	assert.Equal(t, "*.pdf", docs.NameFilter)
	require.Len(t, docs.Ignore, 1)
	assert.Equal(t, []string{".", "~$"}, docs.Ignore[0].Prefixes)
	assert.Equal(t, []string{".tmp"}, docs.Ignore[0].Suffixes)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), docs.LastCopyTime.UTC())

	photos := tasks[1]
	assert.Equal(t, "photos", photos.Label)
	assert.True(t, photos.LastCopyTime.IsZero())
	assert.True(t, photos.LastEvictTime.IsZero())
}

func TestLoadTasksMissingFile(t *testing.T) {
	tasks, err := config.LoadTasks(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLoadTasksDuplicateLabel(t *testing.T) {
	_, err := config.LoadTasks(writeTasks(t, `tasks:
  - {label: a, source: /s, target: /t}
  - {label: a, source: /s2, target: /t2}
`))
	assert.Error(t, err)
}

func TestLoadTasksEmptyLabel(t *testing.T) {
	_, err := config.LoadTasks(writeTasks(t, `tasks:
  - {source: /s, target: /t}
`))
	assert.Error(t, err)
}

func TestStorePersistsTimestamps(t *testing.T) {
	path := writeTasks(t, tasksYAML)
	tasks, err := config.LoadTasks(path)
	require.NoError(t, err)

	store := config.NewStore(path, tasks)
	copyTime := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	evictTime := copyTime.Add(time.Minute)

	require.NoError(t, store.SetLastCopyTime("photos", copyTime))
	require.NoError(t, store.SetLastEvictTime("photos", evictTime))
	store.Close()

	// Reload from disk; the write-back must have survived.
	reloaded, err := config.LoadTasks(path)
	require.NoError(t, err)
	require.Len(t, reloaded, 2)

	photos := reloaded[1]
	assert.True(t, photos.LastCopyTime.Equal(copyTime))
	assert.True(t, photos.LastEvictTime.Equal(evictTime))

	// Untouched task keeps its original fields.
	assert.Equal(t, "*.pdf", reloaded[0].NameFilter)
}

func TestStoreCopyTimeIsMonotonic(t *testing.T) {
	path := writeTasks(t, tasksYAML)
	tasks, err := config.LoadTasks(path)
	require.NoError(t, err)

	store := config.NewStore(path, tasks)
	defer store.Close()

	later := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastCopyTime("docs", later))
	require.NoError(t, store.SetLastCopyTime("docs", later.Add(-time.Hour)))

	task, ok := store.Task("docs")
	require.True(t, ok)
	assert.True(t, task.LastCopyTime.Equal(later), "cutoff must never move backward")
}

func TestStoreUnknownLabel(t *testing.T) {
	path := writeTasks(t, tasksYAML)
	tasks, err := config.LoadTasks(path)
	require.NoError(t, err)

	store := config.NewStore(path, tasks)
	defer store.Close()

	assert.Error(t, store.SetLastCopyTime("ghost", time.Now()))
}

func TestStoreConcurrentUpdates(t *testing.T) {
	path := writeTasks(t, tasksYAML)
	tasks, err := config.LoadTasks(path)
	require.NoError(t, err)

	store := config.NewStore(path, tasks)

	done := make(chan struct{})
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		go func(label string) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				_ = store.SetLastCopyTime(label, base.Add(time.Duration(j)*time.Second))
			}
		}([]string{"docs", "photos"}[i])
	}
	<-done
	<-done
	store.Close()

	reloaded, err := config.LoadTasks(path)
	require.NoError(t, err)

	want := base.Add(19 * time.Second)
	assert.True(t, reloaded[0].LastCopyTime.Equal(want))
	assert.True(t, reloaded[1].LastCopyTime.Equal(want))
}
