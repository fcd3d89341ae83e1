package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"offload/internal/config"
	"offload/internal/logger"
	"offload/internal/model"
	"offload/internal/task"

	"go.uber.org/zap"
)

var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrTaskRunning     = errors.New("task already running")
	ErrSchedulerClosed = errors.New("scheduler is shutting down")
)

// DefaultPhases is what a plain run request means: scan and copy, no evict.
var DefaultPhases = []model.Phase{model.PhaseScan, model.PhaseCopy}

type runState struct {
	startedAt time.Time
	phase     model.Phase
}

// Scheduler launches one worker goroutine per task run and guarantees at
// most one in-flight run per label; concurrent runs of the same label would
// race on the persisted timestamps.
type Scheduler struct {
	mu      sync.RWMutex
	running map[string]*runState
	last    map[string]model.PhaseResult
	store   *config.Store
	runner  *task.Runner
	events  chan model.PhaseResult
	closed  bool
	wg      sync.WaitGroup
}

func New(store *config.Store, runner *task.Runner, bufferSize int) *Scheduler {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	return &Scheduler{
		running: make(map[string]*runState),
		last:    make(map[string]model.PhaseResult),
		store:   store,
		runner:  runner,
		events:  make(chan model.PhaseResult, bufferSize),
	}
}

// Events delivers a running event at each phase start and a terminal event
// at each phase end. The channel closes on Close.
func (s *Scheduler) Events() <-chan model.PhaseResult {
	return s.events
}

// RunTask launches the selected phases for one task on its own worker and
// returns immediately. Results arrive on the event stream.
func (s *Scheduler) RunTask(label string, phases []model.Phase) error {
	t, ok := s.store.Task(label)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, label)
	}

	ordered := normalize(phases)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s not started", ErrSchedulerClosed, label)
	}
	if _, exists := s.running[label]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskRunning, label)
	}
	s.running[label] = &runState{startedAt: time.Now()}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runWorker(t, ordered)

	logger.Log.Info("task run started",
		zap.String("task", label),
		zap.Any("phases", ordered))

	return nil
}

// RunAll launches every configured task; labels already in flight are
// skipped. Returns the number of workers started.
func (s *Scheduler) RunAll(phases []model.Phase) int {
	started := 0
	for _, t := range s.store.Tasks() {
		if err := s.RunTask(t.Label, phases); err != nil {
			logger.Log.Warn("task not started",
				zap.String("task", t.Label),
				zap.Error(err))
			continue
		}
		started++
	}

	return started
}

func (s *Scheduler) runWorker(t model.Task, phases []model.Phase) {
	defer func() {
		s.mu.Lock()
		delete(s.running, t.Label)
		s.mu.Unlock()
		s.wg.Done()

		logger.Log.Info("task run finished",
			zap.String("task", t.Label))
	}()

	run := s.runner.NewRun(t)

	for _, phase := range phases {
		s.mu.Lock()
		if state, ok := s.running[t.Label]; ok {
			state.phase = phase
		}
		s.mu.Unlock()

		s.events <- model.PhaseResult{
			TaskLabel: t.Label,
			Phase:     phase,
			Status:    model.StatusRunning,
			StartedAt: time.Now(),
		}

		result, err := s.runner.Phase(run, phase)

		s.mu.Lock()
		s.last[t.Label] = result
		s.mu.Unlock()

		s.events <- result

		// Precondition and configuration errors end the run; later phases
		// would fail the same way. Per-file failures do not land here.
		if err != nil {
			logger.Log.Error("phase aborted run",
				zap.String("task", t.Label),
				zap.String("phase", string(phase)),
				zap.Error(err))
			return
		}
	}
}

type Snapshot struct {
	Label         string             `json:"label"`
	Name          string             `json:"name,omitempty"`
	Running       bool               `json:"running"`
	Phase         model.Phase        `json:"phase,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	LastCopyTime  time.Time          `json:"last_copy_time"`
	LastEvictTime time.Time          `json:"last_evict_time"`
	LastResult    *model.PhaseResult `json:"last_result,omitempty"`
}

func (s *Scheduler) Snapshots() []Snapshot {
	tasks := s.store.Tasks()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(tasks))
	for _, t := range tasks {
		snap := Snapshot{
			Label:         t.Label,
			Name:          t.Name,
			LastCopyTime:  t.LastCopyTime,
			LastEvictTime: t.LastEvictTime,
		}

		if state, ok := s.running[t.Label]; ok {
			snap.Running = true
			snap.Phase = state.phase
			startedAt := state.startedAt
			snap.StartedAt = &startedAt
		}

		if last, ok := s.last[t.Label]; ok {
			result := last
			snap.LastResult = &result
		}

		snaps = append(snaps, snap)
	}

	return snaps
}

// Wait blocks until all in-flight task runs complete.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close rejects new runs, waits for in-flight ones, then closes the event
// stream. A RunTask arriving after Close begins gets ErrSchedulerClosed
// instead of a worker sending on a closed channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	close(s.events)
}

// normalize dedupes the requested phases and fixes their execution order.
func normalize(phases []model.Phase) []model.Phase {
	if len(phases) == 0 {
		return DefaultPhases
	}

	want := make(map[model.Phase]bool, len(phases))
	for _, p := range phases {
		want[p] = true
	}

	var ordered []model.Phase
	for _, p := range []model.Phase{model.PhaseScan, model.PhaseCopy, model.PhaseEvict} {
		if want[p] {
			ordered = append(ordered, p)
		}
	}

	return ordered
}
