package models

import "time"

// ChildStats is the per-child rollup of stars, streaks and badges. Exactly
// one row per child, created lazily on first use. TotalStars caches the sum
// of the child's ledger entries; the reconcile job verifies the two agree.
type ChildStats struct {
	ChildID    int64
	TotalStars int

	// Streaks count consecutive calendar days with at least one completion.
	// LastActivityDate is stored at day granularity.
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *time.Time

	TotalBadges int

	// Per-category completion counters
	LessonsCompleted    int
	ActivitiesCompleted int
	ChantsCompleted     int
	BooksRead           int
	VideosWatched       int

	UpdatedAt time.Time
}

// Badge is a catalog entry; children hold badges by ID with set semantics
type Badge struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// ChildBadge records one badge held by one child
type ChildBadge struct {
	ChildID   int64
	BadgeID   string
	AwardedAt time.Time
}

// SameDay reports whether two times fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DayStart truncates t to the start of its calendar day in loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
