package model

import "time"

type PhaseStatus string

const (
	StatusRunning PhaseStatus = "RUNNING"
	StatusSuccess PhaseStatus = "SUCCESS"
	StatusPartial PhaseStatus = "PARTIAL"
	StatusFailed  PhaseStatus = "FAILED"
)

type EvictOutcome string

const (
	// OutcomeTriggered means the trigger command accepted the request.
	// Actual eviction happens in the provider's background process and is
	// never observed here.
	OutcomeTriggered EvictOutcome = "TRIGGERED"
	OutcomeFailed    EvictOutcome = "FAILED"
)

// EvictionAttempt is one trigger invocation for one file. Attempt is 1 or 2.
type EvictionAttempt struct {
	Path    string
	Attempt int
	Outcome EvictOutcome
	Err     error
	At      time.Time
}

// PhaseResult is the aggregate outcome of one phase of one task run. It is
// also the event payload delivered to the daemon and any other consumer.
type PhaseResult struct {
	TaskLabel       string        `json:"task_label"`
	Phase           Phase         `json:"phase"`
	Status          PhaseStatus   `json:"status"`
	FilesProcessed  int           `json:"files_processed"`
	FilesSkipped    int           `json:"files_skipped"`
	FilesFailed     int           `json:"files_failed"`
	FailedEvictions []string      `json:"failed_eviction_paths,omitempty"`
	Elapsed         time.Duration `json:"elapsed"`
	StartedAt       time.Time     `json:"started_at"`
	Err             string        `json:"error,omitempty"`
}
