package task

import (
	"errors"
	"time"

	"offload/internal/config"
	"offload/internal/copier"
	"offload/internal/diff"
	"offload/internal/evict"
	"offload/internal/logger"
	"offload/internal/model"
	"offload/internal/scan"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Phase ordering preconditions, reported to the caller instead of crashing
// the worker.
var (
	ErrScanRequired = errors.New("copy requires a completed scan in this run")
	ErrCopyRequired = errors.New("evict requires a completed copy in this run")
)

// Run is the context of a single task run. The scan index, plan and copied
// set live here and only here; nothing about a run survives it except the
// persisted timestamps.
type Run struct {
	Task      model.Task
	StartedAt time.Time

	index    *scan.Index
	plan     model.SyncPlan
	copied   model.SyncPlan
	scanned  bool
	copyDone bool
}

// Runner executes the Scan/Copy/Evict phases for one task at a time.
type Runner struct {
	store    *config.Store
	eviction config.Eviction
	trigger  evict.Trigger
	clock    clockwork.Clock
}

// New builds a runner. A nil trigger falls back to the configured external
// command; a nil clock uses the wall clock.
func New(store *config.Store, eviction config.Eviction, trigger evict.Trigger, clock clockwork.Clock) *Runner {
	if trigger == nil {
		trigger = evict.NewCommandTrigger(eviction.Command, eviction.Timeout)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Runner{
		store:    store,
		eviction: eviction,
		trigger:  trigger,
		clock:    clock,
	}
}

func (r *Runner) NewRun(t model.Task) *Run {
	return &Run{Task: t, StartedAt: time.Now()}
}

// Scan snapshots the source tree. It never mutates persisted state and may
// be re-run any number of times within a run.
func (r *Runner) Scan(run *Run) (model.PhaseResult, error) {
	start := time.Now()
	result := model.PhaseResult{
		TaskLabel: run.Task.Label,
		Phase:     model.PhaseScan,
		StartedAt: start,
	}

	idx, err := scan.Build(run.Task.Source, run.Task.NameFilter, run.Task.Ignore)
	if err != nil {
		result.Status = model.StatusFailed
		result.Err = err.Error()
		result.Elapsed = time.Since(start)
		return result, err
	}

	run.index = idx
	run.scanned = true

	result.FilesProcessed = len(idx.Entries)
	result.FilesSkipped = len(idx.Skipped)
	result.Status = model.StatusSuccess
	if len(idx.Skipped) > 0 {
		result.Status = model.StatusPartial
	}
	result.Elapsed = time.Since(start)

	logger.Log.Info("scan completed",
		zap.String("task", run.Task.Label),
		zap.Int("files", len(idx.Entries)),
		zap.Int("skipped", len(idx.Skipped)))

	return result, nil
}

// Copy plans against last_copy_time, materializes the plan, and advances the
// persisted cutoff. A partial failure still advances the cutoff, but only to
// just before the oldest failed file so failures stay eligible next run.
func (r *Runner) Copy(run *Run) (model.PhaseResult, error) {
	start := time.Now()
	result := model.PhaseResult{
		TaskLabel: run.Task.Label,
		Phase:     model.PhaseCopy,
		StartedAt: start,
	}

	if !run.scanned {
		result.Status = model.StatusFailed
		result.Err = ErrScanRequired.Error()
		return result, ErrScanRequired
	}

	plan, skipped := diff.SelectForCopy(run.index.Entries, run.Task.Target, run.Task.LastCopyTime)
	run.plan = plan

	engine, err := copier.New(run.Task.Target)
	if err != nil {
		result.Status = model.StatusFailed
		result.Err = err.Error()
		result.Elapsed = time.Since(start)
		return result, err
	}

	copyRes := engine.Copy(plan)
	run.copied = copyRes.Copied
	run.copyDone = true

	cutoff := nextCutoff(run.StartedAt, copyRes.Failed)
	persistErr := r.store.SetLastCopyTime(run.Task.Label, cutoff)
	if persistErr != nil {
		logger.Log.Warn("failed to persist last_copy_time",
			zap.String("task", run.Task.Label),
			zap.Error(persistErr))
	}
	run.Task.LastCopyTime = cutoff

	result.FilesProcessed = len(copyRes.Copied)
	result.FilesSkipped = skipped
	result.FilesFailed = len(copyRes.Failed)
	result.Status = model.StatusSuccess
	if len(copyRes.Failed) > 0 {
		result.Status = model.StatusPartial
	}
	if persistErr != nil {
		// Files landed but the cutoff did not; the next run will re-plan
		// them, so the outcome is not a clean success.
		result.Status = model.StatusPartial
		result.Err = persistErr.Error()
	}
	result.Elapsed = time.Since(start)

	logger.Log.Info("copy completed",
		zap.String("task", run.Task.Label),
		zap.Int("copied", len(copyRes.Copied)),
		zap.Int("skipped", skipped),
		zap.Int("failed", len(copyRes.Failed)),
		zap.Time("cutoff", cutoff))

	return result, nil
}

// nextCutoff keeps failed files eligible for the next run: the cutoff only
// advances to just before the oldest failure, never past it.
func nextCutoff(runStart time.Time, failed []copier.FileError) time.Time {
	cutoff := runStart

	for _, f := range failed {
		if c := f.Entry.ModTime.Add(-time.Nanosecond); c.Before(cutoff) {
			cutoff = c
		}
	}

	return cutoff
}

// Evict hands this run's copied files to the external trigger and persists
// last_evict_time regardless of per-file outcomes.
func (r *Runner) Evict(run *Run) (model.PhaseResult, error) {
	start := time.Now()
	result := model.PhaseResult{
		TaskLabel: run.Task.Label,
		Phase:     model.PhaseEvict,
		StartedAt: start,
	}

	if !run.copyDone {
		result.Status = model.StatusFailed
		result.Err = ErrCopyRequired.Error()
		return result, ErrCopyRequired
	}

	paths := diff.SelectForEvict(run.copied, run.Task.Target)

	controller := evict.NewController(r.trigger, r.eviction.SettleDelay, r.eviction.RetryDelay, r.clock)
	attempts := controller.Evict(paths)
	failed := evict.Failed(attempts)

	persistErr := r.store.SetLastEvictTime(run.Task.Label, run.StartedAt)
	if persistErr != nil {
		logger.Log.Warn("failed to persist last_evict_time",
			zap.String("task", run.Task.Label),
			zap.Error(persistErr))
	}
	run.Task.LastEvictTime = run.StartedAt

	result.FilesProcessed = len(paths) - len(failed)
	result.FilesFailed = len(failed)
	result.FailedEvictions = failed
	result.Status = model.StatusSuccess
	if len(failed) > 0 {
		result.Status = model.StatusPartial
	}
	if persistErr != nil {
		result.Status = model.StatusPartial
		result.Err = persistErr.Error()
	}
	result.Elapsed = time.Since(start)

	logger.Log.Info("evict completed",
		zap.String("task", run.Task.Label),
		zap.Int("triggered", len(paths)-len(failed)),
		zap.Int("failed", len(failed)))

	return result, nil
}

// Phase dispatches a single phase by name.
func (r *Runner) Phase(run *Run, phase model.Phase) (model.PhaseResult, error) {
	switch phase {
	case model.PhaseScan:
		return r.Scan(run)
	case model.PhaseCopy:
		return r.Copy(run)
	case model.PhaseEvict:
		return r.Evict(run)
	default:
		result := model.PhaseResult{
			TaskLabel: run.Task.Label,
			Phase:     phase,
			Status:    model.StatusFailed,
			Err:       "unknown phase",
			StartedAt: time.Now(),
		}
		return result, errors.New("unknown phase")
	}
}
