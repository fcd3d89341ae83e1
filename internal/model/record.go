package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// RunRecord is the persisted row for one completed phase.
type RunRecord struct {
	gorm.Model
	TaskLabel       string `gorm:"not null;index"`
	Phase           Phase  `gorm:"not null"`
	Status          PhaseStatus
	FilesProcessed  int
	FilesSkipped    int
	FilesFailed     int
	FailedEvictions string
	ErrMsg          string
	ElapsedMS       int64
	StartedAt       time.Time `gorm:"not null"`
}

func NewRunRecord(r PhaseResult) RunRecord {
	return RunRecord{
		TaskLabel:       r.TaskLabel,
		Phase:           r.Phase,
		Status:          r.Status,
		FilesProcessed:  r.FilesProcessed,
		FilesSkipped:    r.FilesSkipped,
		FilesFailed:     r.FilesFailed,
		FailedEvictions: strings.Join(r.FailedEvictions, "\n"),
		ErrMsg:          r.Err,
		ElapsedMS:       r.Elapsed.Milliseconds(),
		StartedAt:       r.StartedAt,
	}
}

func (r RunRecord) FailedEvictionPaths() []string {
	if r.FailedEvictions == "" {
		return nil
	}
	return strings.Split(r.FailedEvictions, "\n")
}
