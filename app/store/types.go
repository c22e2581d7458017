package store

import (
	"time"
)

type Run struct {
	ID         string
	Cause      string
	StartedAt  time.Time
	FinishedAt time.Time
	Lists      int
	Updated    int
	Skipped    int
}

type ListStatus string

const (
	ListStatusReconciled ListStatus = "reconciled" // badge rewritten
	ListStatusUnchanged  ListStatus = "unchanged"  // resolved count matched the badge
	ListStatusSkipped    ListStatus = "skipped"    // count unknown, badge left alone
)

type ListCount struct {
	ListID    string
	Name      string
	Displayed int
	Resolved  *int // last known count; kept across skipped runs
	Status    ListStatus
	Source    string // live or remote
	CheckedAt time.Time
	ChangedAt *time.Time
}
