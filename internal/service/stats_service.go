package service

import (
	"sync"
	"time"

	"starpath/internal/logging"
	"starpath/internal/models"
	"starpath/internal/repository"
)

// StatsService is the single writer for child stats. Every star, streak and
// badge mutation goes through here; no other code touches the aggregate.
type StatsService struct {
	stats  *repository.StatsRepository
	badges *repository.BadgeRepository

	// loc fixes the timezone for streak day boundaries
	loc *time.Location

	now func() time.Time

	// mu guards childMu; each child gets its own lock so the streak
	// read-then-write is serialized per child without a global choke point
	mu      sync.Mutex
	childMu map[int64]*sync.Mutex
}

// NewStatsService creates a new stats service
func NewStatsService(stats *repository.StatsRepository, badges *repository.BadgeRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{
		stats:   stats,
		badges:  badges,
		loc:     loc,
		now:     time.Now,
		childMu: make(map[int64]*sync.Mutex),
	}
}

func (s *StatsService) lockChild(childID int64) func() {
	s.mu.Lock()
	lock, ok := s.childMu[childID]
	if !ok {
		lock = &sync.Mutex{}
		s.childMu[childID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// AddStars credits stars to a child and advances the daily streak. A zero
// amount is a valid activity signal: it still runs the streak update.
func (s *StatsService) AddStars(childID int64, amount int) (*models.ChildStats, error) {
	if amount < 0 {
		return nil, NewValidationError("star amount must be >= 0, got %d", amount)
	}

	unlock := s.lockChild(childID)
	defer unlock()

	stats, err := s.stats.GetOrCreate(childID)
	if err != nil {
		return nil, err
	}

	if amount > 0 {
		if err := s.stats.AddStars(childID, amount); err != nil {
			return nil, err
		}
	}

	if err := s.updateStreakLocked(stats); err != nil {
		return nil, err
	}

	return s.stats.Get(childID)
}

// RetractStars debits stars after a progress reset. Streaks are history and
// are not rewound.
func (s *StatsService) RetractStars(childID int64, amount int) error {
	if amount <= 0 {
		return nil
	}

	unlock := s.lockChild(childID)
	defer unlock()

	if _, err := s.stats.GetOrCreate(childID); err != nil {
		return err
	}
	return s.stats.AddStars(childID, -amount)
}

// updateStreakLocked applies the day-transition rules. Dates, not
// timestamps: everything is truncated to the day in the configured
// timezone. Caller holds the child lock, which is what stops two rapid
// completions from double-incrementing the same day.
func (s *StatsService) updateStreakLocked(stats *models.ChildStats) error {
	today := models.DayStart(s.now(), s.loc)

	current := stats.CurrentStreak
	switch {
	case stats.LastActivityDate == nil:
		current = 1
	case models.SameDay(*stats.LastActivityDate, today, s.loc):
		// Already counted today
	case models.SameDay(*stats.LastActivityDate, today.AddDate(0, 0, -1), s.loc):
		current++
	default:
		current = 1
	}

	longest := stats.LongestStreak
	if current > longest {
		longest = current
	}

	if err := s.stats.SetStreak(stats.ChildID, current, longest, today); err != nil {
		return err
	}

	stats.CurrentStreak = current
	stats.LongestStreak = longest
	stats.LastActivityDate = &today
	return nil
}

// AwardBadge adds a badge to the child's set. Unknown or empty badge IDs
// are a logged no-op: a bad badge reference must never block progress
// recording. Returns true when the badge was newly awarded.
func (s *StatsService) AwardBadge(childID int64, badgeID string) (bool, error) {
	if badgeID == "" {
		return false, nil
	}

	badge, err := s.badges.GetByID(badgeID)
	if err != nil {
		logging.Sugar.Warnw("badge lookup failed", "badge", badgeID, "error", err)
		return false, nil
	}
	if badge == nil {
		logging.Sugar.Warnw("badge not found, skipping award", "badge", badgeID, "child", childID)
		return false, nil
	}

	awarded, err := s.badges.Award(childID, badgeID, s.now())
	if err != nil {
		logging.Sugar.Warnw("badge award failed", "badge", badgeID, "child", childID, "error", err)
		return false, nil
	}
	if !awarded {
		// Already held; set semantics make the re-add a no-op
		return false, nil
	}

	unlock := s.lockChild(childID)
	defer unlock()

	if _, err := s.stats.GetOrCreate(childID); err != nil {
		return true, err
	}
	if err := s.stats.IncrementBadges(childID); err != nil {
		logging.Sugar.Warnw("badge counter update failed", "child", childID, "error", err)
	}
	return true, nil
}

// RecordCompletion bumps the per-category completion counter
func (s *StatsService) RecordCompletion(childID int64, kind models.ContentKind) error {
	unlock := s.lockChild(childID)
	defer unlock()

	if _, err := s.stats.GetOrCreate(childID); err != nil {
		return err
	}
	return s.stats.IncrementCategory(childID, kind)
}

// GetChildStats retrieves the stats row and badge set for a child
func (s *StatsService) GetChildStats(childID int64) (*models.ChildStats, []models.ChildBadge, error) {
	stats, err := s.stats.GetOrCreate(childID)
	if err != nil {
		return nil, nil, err
	}

	badges, err := s.badges.ListForChild(childID)
	if err != nil {
		return nil, nil, err
	}

	return stats, badges, nil
}
