package models

import "time"

// ProgressStatus is the state of a ProgressRecord
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusLocked     ProgressStatus = "locked"
	StatusSkipped    ProgressStatus = "skipped"
)

// ProgressRecord tracks one child's advancement through one content unit.
// The (ChildID, ContentID) pair is unique.
type ProgressRecord struct {
	ID        int64
	ChildID   int64
	ContentID int64

	Status             ProgressStatus
	ProgressPercentage int
	Score              *int
	MaxScore           *int

	// TimeSpentSeconds only ever grows
	TimeSpentSeconds int
	Attempts         int

	WatchCount       int
	ReadingCount     int
	RecordedAudioRef string

	// StarsAwarded is the single-award guard: once true, this record never
	// earns again within the same reward cycle.
	StarsEarned    int
	StarsAwarded   bool
	StarsAwardedAt *time.Time

	// RewardCycle increments on admin reset; it is part of the ledger
	// idempotency key, so a fresh cycle may earn exactly once more.
	RewardCycle int

	// Duplicate-submission guards
	LastRequestID     string
	LastInteractionAt *time.Time

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Start transitions the record into in_progress, setting StartedAt once and
// counting the attempt. Calling Start on an already started record only
// bumps attempts when it re-enters in_progress from not_started.
func (r *ProgressRecord) Start(now time.Time) {
	if r.Status != StatusNotStarted && r.Status != StatusLocked {
		return
	}
	r.Status = StatusInProgress
	r.Attempts++
	if r.StartedAt == nil {
		t := now
		r.StartedAt = &t
	}
}

// Complete transitions the record into completed. CompletedAt is set exactly
// once; completing again never resets it.
func (r *ProgressRecord) Complete(now time.Time) {
	if r.Status == StatusCompleted {
		return
	}
	if r.StartedAt == nil {
		t := now
		r.StartedAt = &t
	}
	r.Status = StatusCompleted
	r.ProgressPercentage = 100
	r.Attempts++
	if r.CompletedAt == nil {
		t := now
		r.CompletedAt = &t
	}
}

// AddTimeSpent increases TimeSpentSeconds; negative deltas are ignored so
// the counter stays monotone.
func (r *ProgressRecord) AddTimeSpent(seconds int) {
	if seconds > 0 {
		r.TimeSpentSeconds += seconds
	}
}

// Percent computes a rounded completion percentage, clamped to [0,100]
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := (completed*100 + total/2) / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
