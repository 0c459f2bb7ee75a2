package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"starpath/internal/logging"
	"starpath/internal/models"
	"starpath/internal/repository"
)

// streakMilestones are the streak lengths that trigger a parent
// notification.
var streakMilestones = map[int]bool{7: true, 30: true, 100: true}

// RewardResult reports what one interaction did
type RewardResult struct {
	Record *models.ProgressRecord

	// Duplicate marks a suppressed repeat submission; nothing was mutated
	Duplicate bool

	// StarsJustAwarded is the number of stars this call added to the
	// ledger; zero when the reward was already granted earlier
	StarsJustAwarded int

	TotalStars int
	NewBadge   string
}

// RewardService is the dispatcher that turns interactions into progress
// transitions and rewards. Side effects are strictly ordered: ledger write,
// then stats, then badges, so a crash mid-sequence always leaves the ledger
// as the source of truth for reconciliation.
type RewardService struct {
	children *repository.ChildRepository
	content  *repository.ContentRepository
	progress *repository.ProgressRepository
	ledger   *repository.LedgerRepository
	stats    *StatsService
	unlock   *UnlockService
	notifier Notifier

	// duplicateWindow suppresses rapid-fire repeats of the same
	// interaction; the client request ID is the stronger guard
	duplicateWindow time.Duration

	now func() time.Time
}

// NewRewardService creates a new reward dispatcher
func NewRewardService(
	children *repository.ChildRepository,
	content *repository.ContentRepository,
	progress *repository.ProgressRepository,
	ledger *repository.LedgerRepository,
	stats *StatsService,
	unlock *UnlockService,
	notifier Notifier,
	duplicateWindow time.Duration,
) *RewardService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &RewardService{
		children:        children,
		content:         content,
		progress:        progress,
		ledger:          ledger,
		stats:           stats,
		unlock:          unlock,
		notifier:        notifier,
		duplicateWindow: duplicateWindow,
		now:             time.Now,
	}
}

// StartContent creates (or returns) the progress record for a child and
// content unit, moving it into in_progress on first interaction. Idempotent.
func (s *RewardService) StartContent(childID, contentID int64) (*models.ProgressRecord, error) {
	if _, _, err := s.loadPair(childID, contentID); err != nil {
		return nil, err
	}

	rec, err := s.getOrCreateRecord(childID, contentID)
	if err != nil {
		return nil, err
	}

	if rec.Status == models.StatusNotStarted {
		rec.Start(s.now())
		if err := s.progress.Save(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// GetProgress retrieves the progress record for a child and content unit
func (s *RewardService) GetProgress(childID, contentID int64) (*models.ProgressRecord, error) {
	rec, err := s.progress.Get(childID, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewNotFoundError("progress record", fmt.Sprintf("child %d content %d", childID, contentID))
	}
	return rec, nil
}

// RecordInteraction applies one interaction signal: advances the progress
// record per the content kind's completion rule and, on a newly satisfied
// completion, awards stars exactly once per reward cycle.
func (s *RewardService) RecordInteraction(childID, contentID int64, sig Signal) (*RewardResult, error) {
	child, unit, err := s.loadPair(childID, contentID)
	if err != nil {
		return nil, err
	}

	rule, err := ruleFor(unit.Kind)
	if err != nil {
		return nil, err
	}

	rec, err := s.getOrCreateRecord(childID, contentID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Duplicate suppression: a repeated client token, or any repeat inside
	// the short window, is acknowledged without touching counters
	if sig.RequestID != "" && sig.RequestID == rec.LastRequestID {
		return s.duplicateResult(rec)
	}
	if rec.LastInteractionAt != nil && now.Sub(*rec.LastInteractionAt) < s.duplicateWindow {
		return s.duplicateResult(rec)
	}

	prevReadingCount := rec.ReadingCount

	satisfied, err := rule(rec, unit, sig)
	if err != nil {
		return nil, err
	}

	rec.AddTimeSpent(sig.TimeSpentSeconds)
	if rec.Status == models.StatusNotStarted || rec.Status == models.StatusLocked {
		rec.Start(now)
	}

	// The conditional row transition settles concurrent completions: only
	// the request that flips the row runs the one-shot side effects below
	newlyCompleted := false
	if satisfied && rec.Status != models.StatusCompleted {
		rec.Complete(now)
		won, err := s.progress.CompleteOnce(rec.ID, now)
		if err != nil {
			return nil, err
		}
		newlyCompleted = won
	}

	rec.LastRequestID = sig.RequestID
	interactedAt := now
	rec.LastInteractionAt = &interactedAt

	result := &RewardResult{Record: rec}

	// Books accrue stars per completed reading, before any completion bonus.
	// Readings past the required count keep advancing the counter but never
	// mint entries.
	if unit.Kind == models.KindBook && unit.StarsPerReading > 0 {
		paidThrough := rec.ReadingCount
		if required := requiredReadings(unit); paidThrough > required {
			paidThrough = required
		}
		for reading := prevReadingCount + 1; reading <= paidThrough; reading++ {
			awarded, err := s.awardEntry(child, unit, unit.StarsPerReading,
				models.ReadingKey(childID, contentID, rec.RewardCycle, reading),
				fmt.Sprintf("Reading %d of %q", reading, unit.Name))
			if err != nil {
				return nil, err
			}
			if awarded {
				result.StarsJustAwarded += unit.StarsPerReading
				rec.StarsEarned += unit.StarsPerReading
			} else if err := s.syncEarnedFromLedger(rec, unit); err != nil {
				return nil, err
			}
		}
	}

	if satisfied {
		stars, err := s.awardCompletion(child, unit, rec)
		if err != nil {
			return nil, err
		}
		result.StarsJustAwarded += stars
	}

	if newlyCompleted {
		if err := s.stats.RecordCompletion(childID, unit.Kind); err != nil {
			logging.Sugar.Warnw("category counter update failed", "child", childID, "error", err)
		}

		newBadge, _ := s.stats.AwardBadge(childID, unit.BadgeID)
		if newBadge {
			result.NewBadge = unit.BadgeID
			if err := s.notifier.BadgeEarned(child.ParentEmail, child.Name, unit.BadgeID); err != nil {
				logging.Sugar.Warnw("badge notification failed", "child", childID, "error", err)
			}
		}
	}

	if err := s.progress.Save(rec); err != nil {
		return nil, err
	}

	if newlyCompleted {
		s.unlock.RecomputeForContent(childID, contentID)
	}

	stats, _, err := s.stats.GetChildStats(childID)
	if err != nil {
		return nil, err
	}
	result.TotalStars = stats.TotalStars

	return result, nil
}

// awardCompletion grants the one-time completion reward, guarded three
// deep: the record's starsAwarded flag, a ledger idempotency-key lookup,
// and the unique index that settles concurrent writers.
func (s *RewardService) awardCompletion(child *models.ChildProfile, unit *models.ContentUnit, rec *models.ProgressRecord) (int, error) {
	// Replay videos never award stars, checked before any ledger write.
	// The completion still counts as activity for the streak.
	if unit.Category == models.CategoryReplay {
		if _, err := s.stats.AddStars(child.ID, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if rec.StarsAwarded {
		return 0, nil
	}

	now := s.now()
	stars := unit.CompletionStars()

	// Zero-star completions (e.g. a book whose per-reading stars cover the
	// whole reward) don't produce ledger entries, only a streak update
	if stars <= 0 {
		if _, err := s.stats.AddStars(child.ID, 0); err != nil {
			return 0, err
		}
		rec.StarsAwarded = true
		rec.StarsAwardedAt = &now
		return 0, nil
	}

	key := models.EarnKey(child.ID, unit.Kind, unit.ID, rec.RewardCycle)

	awarded, err := s.awardEntry(child, unit, stars,
		key, fmt.Sprintf("Completed %q", unit.Name))
	if err != nil {
		return 0, err
	}
	rec.StarsAwarded = true
	rec.StarsAwardedAt = &now
	if awarded {
		rec.StarsEarned += stars
	} else {
		// The key already exists: another request (a racer, or one that
		// crashed before saving) minted the stars. Absorb the ledger's
		// amount instead of this record's stale arithmetic.
		if err := s.syncEarnedFromLedger(rec, unit); err != nil {
			return 0, err
		}
	}

	// Persist the guard immediately; the full record save happens later and
	// a crash in between must not leave the ledger entry orphaned
	if err := s.progress.MarkAwarded(rec.ID, rec.StarsEarned, now); err != nil {
		logging.Sugar.Warnw("award flag persist failed", "record", rec.ID, "error", err)
	}

	if awarded {
		return stars, nil
	}
	return 0, nil
}

// syncEarnedFromLedger replaces the record's earned total with the ledger's
// sum for the current reward cycle. Called when an award hits an existing
// idempotency key, which means the ledger is ahead of this record.
func (s *RewardService) syncEarnedFromLedger(rec *models.ProgressRecord, unit *models.ContentUnit) error {
	sum, err := s.ledger.SumEarnedForCycle(rec.ChildID, unit.Kind, unit.ID, rec.RewardCycle)
	if err != nil {
		return err
	}
	rec.StarsEarned = sum
	return nil
}

// awardEntry writes one ledger entry and credits the stats aggregate.
// Returns false when the idempotency key already exists, either from an
// earlier request that crashed before flagging the record or from a
// concurrent racer; both cases mean "already awarded", not failure.
func (s *RewardService) awardEntry(child *models.ChildProfile, unit *models.ContentUnit, stars int, key, description string) (bool, error) {
	existing, err := s.ledger.FindByIdempotencyKey(key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	entry := &models.StarEntry{
		EntryID:        uuid.NewString(),
		ChildID:        child.ID,
		Kind:           models.EntryEarn,
		Stars:          stars,
		SourceType:     unit.Kind,
		ContentID:      unit.ID,
		Description:    description,
		IdempotencyKey: key,
	}

	if _, err := s.ledger.Insert(entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// Lost the race; the winner's entry stands
			return false, nil
		}
		return false, err
	}

	// Ledger first, stats second: a crash here leaves the ledger ahead of
	// the cache, which reconciliation repairs from the ledger side
	stats, err := s.stats.AddStars(child.ID, stars)
	if err != nil {
		logging.Sugar.Errorw("stats update failed after ledger write",
			"child", child.ID, "entry", entry.EntryID, "error", err)
		return true, nil
	}

	if streakMilestones[stats.CurrentStreak] {
		if err := s.notifier.StreakMilestone(child.ParentEmail, child.Name, stats.CurrentStreak); err != nil {
			logging.Sugar.Warnw("streak notification failed", "child", child.ID, "error", err)
		}
	}

	return true, nil
}

// ResetProgress is the admin reset. It never deletes ledger history:
// earned stars are compensated with a reversal entry, the record returns
// to not_started, and the reward cycle bumps so a later re-completion
// earns exactly once under a fresh idempotency key.
func (s *RewardService) ResetProgress(childID, contentID int64) (*models.ProgressRecord, error) {
	_, unit, err := s.loadPair(childID, contentID)
	if err != nil {
		return nil, err
	}

	rec, err := s.progress.Get(childID, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewNotFoundError("progress record", fmt.Sprintf("child %d content %d", childID, contentID))
	}

	if rec.StarsEarned > 0 {
		reversalOf := ""
		if earn, err := s.ledger.FindByIdempotencyKey(models.EarnKey(childID, unit.Kind, unit.ID, rec.RewardCycle)); err == nil && earn != nil {
			reversalOf = earn.EntryID
		}

		entry := &models.StarEntry{
			EntryID:        uuid.NewString(),
			ChildID:        childID,
			Kind:           models.EntryReversal,
			Stars:          -rec.StarsEarned,
			SourceType:     unit.Kind,
			ContentID:      unit.ID,
			Description:    fmt.Sprintf("Progress reset for %q", unit.Name),
			IdempotencyKey: models.ReversalKey(childID, unit.Kind, unit.ID, rec.RewardCycle),
			ReversalOf:     reversalOf,
		}

		if _, err := s.ledger.Insert(entry); err != nil && !errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, err
		}

		if err := s.stats.RetractStars(childID, rec.StarsEarned); err != nil {
			return nil, err
		}
	}

	rec.Status = models.StatusNotStarted
	rec.ProgressPercentage = 0
	rec.Score = nil
	rec.MaxScore = nil
	rec.WatchCount = 0
	rec.ReadingCount = 0
	rec.RecordedAudioRef = ""
	rec.StarsEarned = 0
	rec.StarsAwarded = false
	rec.StarsAwardedAt = nil
	rec.StartedAt = nil
	rec.CompletedAt = nil
	// A genuine re-attempt right after the reset must not be suppressed
	rec.LastRequestID = ""
	rec.LastInteractionAt = nil
	rec.RewardCycle++

	if err := s.progress.Save(rec); err != nil {
		return nil, err
	}

	s.unlock.RecomputeForContent(childID, contentID)

	return rec, nil
}

func (s *RewardService) duplicateResult(rec *models.ProgressRecord) (*RewardResult, error) {
	stats, _, err := s.stats.GetChildStats(rec.ChildID)
	if err != nil {
		return nil, err
	}
	return &RewardResult{
		Record:     rec,
		Duplicate:  true,
		TotalStars: stats.TotalStars,
	}, nil
}

func (s *RewardService) getOrCreateRecord(childID, contentID int64) (*models.ProgressRecord, error) {
	rec, err := s.progress.Get(childID, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = s.progress.Create(childID, contentID, models.StatusNotStarted)
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *RewardService) loadPair(childID, contentID int64) (*models.ChildProfile, *models.ContentUnit, error) {
	child, err := s.children.GetByID(childID)
	if err != nil {
		return nil, nil, err
	}
	if child == nil {
		return nil, nil, NewNotFoundError("child", childID)
	}
	if !child.IsActive {
		return nil, nil, NewValidationError("child %d is deactivated", childID)
	}

	unit, err := s.content.GetByID(contentID)
	if err != nil {
		return nil, nil, err
	}
	if unit == nil {
		return nil, nil, NewNotFoundError("content unit", contentID)
	}

	return child, unit, nil
}
