package models

import "time"

// ContentKind identifies the type of a completable learning item. Each kind
// has its own completion rule and reward configuration.
type ContentKind string

const (
	KindLesson   ContentKind = "lesson"
	KindActivity ContentKind = "activity"
	KindChant    ContentKind = "chant"
	KindAudio    ContentKind = "audio"
	KindBook     ContentKind = "book"
	KindVideo    ContentKind = "video"
	KindExplore  ContentKind = "explore"
)

// ValidKind reports whether k is a known content kind
func ValidKind(k ContentKind) bool {
	switch k {
	case KindLesson, KindActivity, KindChant, KindAudio, KindBook, KindVideo, KindExplore:
		return true
	}
	return false
}

// CategoryReplay marks videos that never award stars, no matter how often
// they are completed.
const CategoryReplay = "replay"

// ContentUnit is the engine's view of a completable item: identity plus the
// reward and completion-rule metadata registered for it. The content itself
// (files, text, media) lives elsewhere.
type ContentUnit struct {
	ID       int64
	Kind     ContentKind
	Name     string
	Category string

	// StarsAwarded is the one-time reward for completing the unit.
	// Books use the per-reading fields below instead.
	StarsAwarded int

	// PassingScorePercent applies to activities; 0 means any submission
	// completes the activity.
	PassingScorePercent int

	// RequiredWatchCount applies to explore videos.
	RequiredWatchCount int

	// Book reward shape: stars accrue per completed reading, and any
	// remainder of TotalStarsAwarded beyond StarsPerReading*RequiredReadingCount
	// is paid as a completion bonus.
	RequiredReadingCount int
	StarsPerReading      int
	TotalStarsAwarded    int

	// BadgeID is evaluated on completion; empty means no badge attached.
	BadgeID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompletionStars returns the stars a single completion of this unit is
// worth, excluding per-reading accrual for books.
func (c *ContentUnit) CompletionStars() int {
	if c.Kind == KindBook {
		bonus := c.TotalStarsAwarded - c.StarsPerReading*c.RequiredReadingCount
		if bonus > 0 {
			return bonus
		}
		return 0
	}
	return c.StarsAwarded
}
