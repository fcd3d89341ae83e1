package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"offload/internal/logger"
	"offload/internal/model"
	"offload/internal/scheduler"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher triggers scan+copy for a task when its source tree changes. A
// burst of filesystem events collapses into a single run per task through a
// per-label debounce timer.
type Watcher struct {
	fw       *fsnotify.Watcher
	sched    *scheduler.Scheduler
	debounce time.Duration

	mu     sync.Mutex
	roots  map[string]string // abs source root -> task label
	timers map[string]*time.Timer

	doneCh chan struct{}
}

func New(sched *scheduler.Scheduler, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		fw:       fw,
		sched:    sched,
		debounce: debounce,
		roots:    make(map[string]string),
		timers:   make(map[string]*time.Timer),
		doneCh:   make(chan struct{}),
	}, nil
}

// Add registers a task's source tree for watching.
func (w *Watcher) Add(t model.Task) error {
	absRoot, err := filepath.Abs(t.Source)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if _, err := os.Stat(absRoot); err != nil {
		return fmt.Errorf("source directory not found: %w", err)
	}

	if err := w.addRecursive(absRoot); err != nil {
		return err
	}

	w.mu.Lock()
	w.roots[absRoot] = t.Label
	w.mu.Unlock()

	logger.Log.Info("watching source",
		zap.String("task", t.Label),
		zap.String("dir", absRoot))

	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if err := w.fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			logger.Log.Debug("watching directory",
				zap.String("path", path))
		}

		return nil
	})
}

func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.doneCh:
			logger.Log.Info("watcher stopping")
			return

		case fsEvent, ok := <-w.fw.Events:
			if !ok {
				return
			}

			if fsEvent.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					if err := w.fw.Add(fsEvent.Name); err != nil {
						logger.Log.Warn("failed to watch new directory",
							zap.String("path", fsEvent.Name),
							zap.Error(err))
					}
				}
			}

			label, ok := w.labelFor(fsEvent.Name)
			if !ok {
				continue
			}

			w.schedule(label)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			logger.Log.Error("watcher error",
				zap.Error(err))
		}
	}
}

func (w *Watcher) labelFor(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for root, label := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return label, true
		}
	}

	return "", false
}

// schedule resets the task's debounce timer; the run fires once the source
// tree settles.
func (w *Watcher) schedule(label string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[label]; ok {
		t.Stop()
	}

	w.timers[label] = time.AfterFunc(w.debounce, func() {
		if err := w.sched.RunTask(label, scheduler.DefaultPhases); err != nil {
			logger.Log.Warn("watch-triggered run skipped",
				zap.String("task", label),
				zap.Error(err))
		}
	})
}

func (w *Watcher) Stop() {
	close(w.doneCh)
	_ = w.fw.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
}
