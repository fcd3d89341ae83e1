package config

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"offload/internal/model"
	"offload/internal/util"

	"gopkg.in/yaml.v3"
)

type update struct {
	label string
	apply func(*model.Task)
	resp  chan error
}

// Store owns the durable task table. All timestamp updates funnel through a
// single writer goroutine, so concurrent task runs never race on the file.
type Store struct {
	mu      sync.RWMutex
	path    string
	tasks   []model.Task
	updates chan update
	done    chan struct{}
}

func NewStore(path string, tasks []model.Task) *Store {
	s := &Store{
		path:    path,
		tasks:   tasks,
		updates: make(chan update),
		done:    make(chan struct{}),
	}

	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.done)

	for u := range s.updates {
		u.resp <- s.applyAndPersist(u)
	}
}

func (s *Store) applyAndPersist(u update) error {
	s.mu.Lock()
	found := false
	for i := range s.tasks {
		if s.tasks[i].Label == u.label {
			u.apply(&s.tasks[i])
			found = true
			break
		}
	}
	snapshot := make([]model.Task, len(s.tasks))
	copy(snapshot, s.tasks)
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("unknown task label %q", u.label)
	}

	return s.persist(snapshot)
}

func (s *Store) persist(tasks []model.Task) error {
	data, err := yaml.Marshal(tasksFile{Tasks: tasks})
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	if err := util.AtomicWrite(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write tasks file: %w", err)
	}

	return nil
}

func (s *Store) submit(label string, apply func(*model.Task)) error {
	resp := make(chan error, 1)
	s.updates <- update{label: label, apply: apply, resp: resp}
	return <-resp
}

// SetLastCopyTime never moves the cutoff backward.
func (s *Store) SetLastCopyTime(label string, t time.Time) error {
	return s.submit(label, func(task *model.Task) {
		if t.After(task.LastCopyTime) {
			task.LastCopyTime = t
		}
	})
}

func (s *Store) SetLastEvictTime(label string, t time.Time) error {
	return s.submit(label, func(task *model.Task) {
		task.LastEvictTime = t
	})
}

func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) Task(label string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tasks {
		if t.Label == label {
			return t, true
		}
	}

	return model.Task{}, false
}

// Close stops the writer goroutine after in-flight updates drain.
func (s *Store) Close() {
	close(s.updates)
	<-s.done
}
