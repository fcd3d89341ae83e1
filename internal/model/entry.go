package model

import "time"

// FileEntry is an immutable snapshot of one regular file taken during a scan.
type FileEntry struct {
	RelPath string
	AbsPath string
	Size    int64
	ModTime time.Time
}

// SkippedPath records a subtree or entry the scan could not read.
type SkippedPath struct {
	Path   string
	Reason string
}

// SyncPlan is the ordered set of files selected for one Copy phase.
type SyncPlan []FileEntry
