package evict

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"offload/internal/logger"
	"offload/internal/model"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Trigger asks the cloud provider's agent to make a file cloud-only. A nil
// return means the request was accepted, not that the file is gone; the
// provider evicts in its own background process and completion is never
// observed here.
type Trigger interface {
	Evict(path string) error
}

// CommandTrigger shells out to an external eviction tool, invoked as
// `<command> evict <path>`.
type CommandTrigger struct {
	command string
	timeout time.Duration
}

func NewCommandTrigger(command string, timeout time.Duration) *CommandTrigger {
	return &CommandTrigger{command: command, timeout: timeout}
}

func (t *CommandTrigger) Evict(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, t.command, "evict", path).CombinedOutput()
	if err != nil {
		if msg := bytes.TrimSpace(out); len(msg) > 0 {
			return fmt.Errorf("evict command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("evict command failed: %w", err)
	}

	return nil
}

// Controller drives the two-attempt trigger protocol. Every file terminates
// in at most two attempts: triggered on the first success, permanently
// failed otherwise.
type Controller struct {
	trigger     Trigger
	settleDelay time.Duration
	retryDelay  time.Duration
	clock       clockwork.Clock
}

func NewController(trigger Trigger, settleDelay, retryDelay time.Duration, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Controller{
		trigger:     trigger,
		settleDelay: settleDelay,
		retryDelay:  retryDelay,
		clock:       clock,
	}
}

// Evict triggers eviction for each path in order and returns the append-only
// attempt log. Files whose first attempt fails get a single retry pass after
// the rest of the batch.
func (c *Controller) Evict(paths []string) []model.EvictionAttempt {
	var attempts []model.EvictionAttempt
	var retry []string

	for _, path := range paths {
		// Give the provider a moment to register the fresh copy before
		// asking it to drop the local bytes.
		c.clock.Sleep(c.settleDelay)

		attempt := c.attempt(path, 1)
		attempts = append(attempts, attempt)

		if attempt.Outcome == model.OutcomeFailed {
			retry = append(retry, path)
			continue
		}

		c.clock.Sleep(c.settleDelay)
	}

	for _, path := range retry {
		c.clock.Sleep(c.retryDelay)
		attempts = append(attempts, c.attempt(path, 2))
	}

	return attempts
}

func (c *Controller) attempt(path string, n int) model.EvictionAttempt {
	err := c.trigger.Evict(path)

	attempt := model.EvictionAttempt{
		Path:    path,
		Attempt: n,
		Outcome: model.OutcomeTriggered,
		At:      c.clock.Now(),
	}

	if err != nil {
		attempt.Outcome = model.OutcomeFailed
		attempt.Err = err
		logger.Log.Error("evict trigger failed",
			zap.String("path", path),
			zap.Int("attempt", n),
			zap.Error(err))
		return attempt
	}

	logger.Log.Info("evict triggered",
		zap.String("path", path),
		zap.Int("attempt", n))
	return attempt
}

// Failed returns the paths left in the permanently-failed terminal state,
// preserving first-trigger order. These files keep their local bytes and
// are reported, never retried across runs.
func Failed(attempts []model.EvictionAttempt) []string {
	final := make(map[string]model.EvictOutcome)
	var order []string

	for _, a := range attempts {
		if _, seen := final[a.Path]; !seen {
			order = append(order, a.Path)
		}
		final[a.Path] = a.Outcome
	}

	var failed []string
	for _, path := range order {
		if final[path] == model.OutcomeFailed {
			failed = append(failed, path)
		}
	}

	return failed
}
