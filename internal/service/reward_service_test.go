package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"starpath/internal/models"
)

func TestLessonCompletionAwardsOnce(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20,
	})

	result, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.StarsJustAwarded != 20 {
		t.Errorf("StarsJustAwarded = %d, want 20", result.StarsJustAwarded)
	}
	if result.TotalStars != 20 {
		t.Errorf("TotalStars = %d, want 20", result.TotalStars)
	}
	if result.Record.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want completed", result.Record.Status)
	}

	// Completing again never re-awards
	result, err = env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.StarsJustAwarded != 0 {
		t.Errorf("StarsJustAwarded = %d, want 0 on repeat", result.StarsJustAwarded)
	}
	if result.TotalStars != 20 {
		t.Errorf("TotalStars = %d, want 20 after repeat", result.TotalStars)
	}

	entries := env.ledgerEntries(t, child.ID)
	if len(entries) != 1 {
		t.Fatalf("Ledger entries = %d, want 1", len(entries))
	}
	if entries[0].Stars != 20 {
		t.Errorf("Entry stars = %d, want 20", entries[0].Stars)
	}
}

func TestActivityPassingScore(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	activity := env.createContent(t, &models.ContentUnit{
		Kind: models.KindActivity, Name: "Matching", StarsAwarded: 10, PassingScorePercent: 70,
	})

	// A failing score tracks progress without completing
	result, err := env.rewards.RecordInteraction(child.ID, activity.ID, Signal{
		Score: intPtr(5), MaxScore: intPtr(10),
	})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.Record.Status != models.StatusInProgress {
		t.Errorf("Status = %s, want in_progress", result.Record.Status)
	}
	if result.StarsJustAwarded != 0 {
		t.Errorf("StarsJustAwarded = %d, want 0 for failing score", result.StarsJustAwarded)
	}
	if result.Record.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Record.Attempts)
	}

	// A passing score completes and awards
	result, err = env.rewards.RecordInteraction(child.ID, activity.ID, Signal{
		Score: intPtr(8), MaxScore: intPtr(10),
	})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.Record.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want completed", result.Record.Status)
	}
	if result.StarsJustAwarded != 10 {
		t.Errorf("StarsJustAwarded = %d, want 10", result.StarsJustAwarded)
	}
}

func TestBookPerReadingAccrual(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	book := env.createContent(t, &models.ContentUnit{
		Kind: models.KindBook, Name: "The Red Hen",
		RequiredReadingCount: 5, StarsPerReading: 10, TotalStarsAwarded: 50,
	})

	for reading := 1; reading <= 5; reading++ {
		result, err := env.rewards.RecordInteraction(child.ID, book.ID, Signal{ReadingSessionComplete: true})
		if err != nil {
			t.Fatalf("Reading %d failed: %v", reading, err)
		}
		if result.StarsJustAwarded != 10 {
			t.Errorf("Reading %d: StarsJustAwarded = %d, want 10", reading, result.StarsJustAwarded)
		}
	}

	rec, err := env.rewards.GetProgress(child.ID, book.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if rec.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
	if rec.StarsEarned != 50 {
		t.Errorf("StarsEarned = %d, want 50", rec.StarsEarned)
	}

	// No completion bonus when per-reading stars cover the total
	entries := env.ledgerEntries(t, child.ID)
	if len(entries) != 5 {
		t.Errorf("Ledger entries = %d, want 5", len(entries))
	}

	stats, _, err := env.statsService.GetChildStats(child.ID)
	if err != nil {
		t.Fatalf("GetChildStats failed: %v", err)
	}
	if stats.TotalStars != 50 {
		t.Errorf("TotalStars = %d, want 50", stats.TotalStars)
	}
}

func TestBookReadingsBeyondRequiredStopAccruing(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	book := env.createContent(t, &models.ContentUnit{
		Kind: models.KindBook, Name: "The Red Hen",
		RequiredReadingCount: 2, StarsPerReading: 10, TotalStarsAwarded: 20,
	})

	for reading := 1; reading <= 4; reading++ {
		result, err := env.rewards.RecordInteraction(child.ID, book.ID, Signal{ReadingSessionComplete: true})
		if err != nil {
			t.Fatalf("Reading %d failed: %v", reading, err)
		}
		if reading > 2 && result.StarsJustAwarded != 0 {
			t.Errorf("Reading %d: StarsJustAwarded = %d, want 0 past the required count", reading, result.StarsJustAwarded)
		}
	}

	rec, err := env.rewards.GetProgress(child.ID, book.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if rec.ReadingCount != 4 {
		t.Errorf("ReadingCount = %d, want 4", rec.ReadingCount)
	}
	if rec.StarsEarned != 20 {
		t.Errorf("StarsEarned = %d, want 20", rec.StarsEarned)
	}
	if entries := env.ledgerEntries(t, child.ID); len(entries) != 2 {
		t.Errorf("Ledger entries = %d, want 2", len(entries))
	}
}

func TestBookCompletionBonus(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	book := env.createContent(t, &models.ContentUnit{
		Kind: models.KindBook, Name: "The Blue Boat",
		RequiredReadingCount: 3, StarsPerReading: 10, TotalStarsAwarded: 45,
	})

	for reading := 1; reading <= 3; reading++ {
		if _, err := env.rewards.RecordInteraction(child.ID, book.ID, Signal{ReadingSessionComplete: true}); err != nil {
			t.Fatalf("Reading %d failed: %v", reading, err)
		}
	}

	// 3 readings x 10 plus a 15-star completion bonus
	entries := env.ledgerEntries(t, child.ID)
	if len(entries) != 4 {
		t.Fatalf("Ledger entries = %d, want 4", len(entries))
	}
	if bonus := entries[3].Stars; bonus != 15 {
		t.Errorf("Bonus entry stars = %d, want 15", bonus)
	}

	stats, _, err := env.statsService.GetChildStats(child.ID)
	if err != nil {
		t.Fatalf("GetChildStats failed: %v", err)
	}
	if stats.TotalStars != 45 {
		t.Errorf("TotalStars = %d, want 45", stats.TotalStars)
	}
}

func TestReplayVideoNeverAwards(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	video := env.createContent(t, &models.ContentUnit{
		Kind: models.KindVideo, Name: "ABC Song", Category: models.CategoryReplay, StarsAwarded: 10,
	})

	result, err := env.rewards.RecordInteraction(child.ID, video.ID, Signal{CompletionPercentage: intPtr(100)})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.StarsJustAwarded != 0 {
		t.Errorf("StarsJustAwarded = %d, want 0 for replay", result.StarsJustAwarded)
	}
	if result.Record.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want completed", result.Record.Status)
	}

	if entries := env.ledgerEntries(t, child.ID); len(entries) != 0 {
		t.Errorf("Ledger entries = %d, want 0 for replay", len(entries))
	}

	// The completion still counts as activity for the streak
	stats, _, err := env.statsService.GetChildStats(child.ID)
	if err != nil {
		t.Fatalf("GetChildStats failed: %v", err)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", stats.CurrentStreak)
	}
}

func TestZeroStarCompletionLeavesNoLedgerEntry(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Intro",
	})

	result, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.StarsJustAwarded != 0 {
		t.Errorf("StarsJustAwarded = %d, want 0", result.StarsJustAwarded)
	}
	if !result.Record.StarsAwarded {
		t.Error("Expected StarsAwarded flag to be set")
	}
	if entries := env.ledgerEntries(t, child.ID); len(entries) != 0 {
		t.Errorf("Ledger entries = %d, want 0", len(entries))
	}
}

func TestDuplicateRequestID(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	book := env.createContent(t, &models.ContentUnit{
		Kind: models.KindBook, Name: "The Red Hen",
		RequiredReadingCount: 5, StarsPerReading: 10, TotalStarsAwarded: 50,
	})

	sig := Signal{RequestID: "req-1", ReadingSessionComplete: true}
	first, err := env.rewards.RecordInteraction(child.ID, book.ID, sig)
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if first.Duplicate {
		t.Error("First submission must not be a duplicate")
	}

	second, err := env.rewards.RecordInteraction(child.ID, book.ID, sig)
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if !second.Duplicate {
		t.Error("Repeated request ID must be suppressed")
	}
	if second.Record.ReadingCount != 1 {
		t.Errorf("ReadingCount = %d, want 1 (duplicate must not mutate)", second.Record.ReadingCount)
	}
	if second.TotalStars != 10 {
		t.Errorf("TotalStars = %d, want 10", second.TotalStars)
	}
}

func TestDuplicateWindow(t *testing.T) {
	env := setupTestEnv(t)
	env.rewards.duplicateWindow = time.Minute

	child := env.createChild(t, "Ada")
	book := env.createContent(t, &models.ContentUnit{
		Kind: models.KindBook, Name: "The Red Hen",
		RequiredReadingCount: 5, StarsPerReading: 10, TotalStarsAwarded: 50,
	})

	if _, err := env.rewards.RecordInteraction(child.ID, book.ID, Signal{ReadingSessionComplete: true}); err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}

	// Distinct request IDs, but inside the window
	result, err := env.rewards.RecordInteraction(child.ID, book.ID, Signal{RequestID: "other", ReadingSessionComplete: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if !result.Duplicate {
		t.Error("Rapid repeat inside the window must be suppressed")
	}
	if result.Record.ReadingCount != 1 {
		t.Errorf("ReadingCount = %d, want 1", result.Record.ReadingCount)
	}
}

func TestResetClearsDuplicateGuards(t *testing.T) {
	env := setupTestEnv(t)
	env.rewards.duplicateWindow = time.Minute

	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20,
	})

	if _, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{RequestID: "req-1", Completed: true}); err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if _, err := env.rewards.ResetProgress(child.ID, lesson.ID); err != nil {
		t.Fatalf("ResetProgress failed: %v", err)
	}

	// Same request ID, straight after the reset: a legitimate re-attempt,
	// not a duplicate
	result, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{RequestID: "req-1", Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.Duplicate {
		t.Error("Re-attempt after reset must not be suppressed")
	}
	if result.StarsJustAwarded != 20 {
		t.Errorf("StarsJustAwarded = %d, want 20 on re-earn", result.StarsJustAwarded)
	}
}

func TestResetAndReearn(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20,
	})

	if _, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true}); err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}

	rec, err := env.rewards.ResetProgress(child.ID, lesson.ID)
	if err != nil {
		t.Fatalf("ResetProgress failed: %v", err)
	}
	if rec.Status != models.StatusNotStarted {
		t.Errorf("Status = %s, want not_started", rec.Status)
	}
	if rec.RewardCycle != 1 {
		t.Errorf("RewardCycle = %d, want 1", rec.RewardCycle)
	}
	if rec.Attempts == 0 {
		t.Error("Attempts must survive a reset")
	}

	// Reversal entry compensates the earn; history is never deleted
	entries := env.ledgerEntries(t, child.ID)
	if len(entries) != 2 {
		t.Fatalf("Ledger entries = %d, want 2", len(entries))
	}
	if entries[1].Kind != models.EntryReversal {
		t.Errorf("Entry kind = %s, want reversal", entries[1].Kind)
	}
	if entries[1].Stars != -20 {
		t.Errorf("Reversal stars = %d, want -20", entries[1].Stars)
	}
	if entries[1].ReversalOf != entries[0].EntryID {
		t.Errorf("ReversalOf = %q, want %q", entries[1].ReversalOf, entries[0].EntryID)
	}

	stats, _, err := env.statsService.GetChildStats(child.ID)
	if err != nil {
		t.Fatalf("GetChildStats failed: %v", err)
	}
	if stats.TotalStars != 0 {
		t.Errorf("TotalStars = %d, want 0 after reset", stats.TotalStars)
	}

	// A fresh cycle earns exactly once more
	result, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.StarsJustAwarded != 20 {
		t.Errorf("StarsJustAwarded = %d, want 20 on re-earn", result.StarsJustAwarded)
	}
	if result.TotalStars != 20 {
		t.Errorf("TotalStars = %d, want 20", result.TotalStars)
	}
	if entries := env.ledgerEntries(t, child.ID); len(entries) != 3 {
		t.Errorf("Ledger entries = %d, want 3", len(entries))
	}
}

func TestOrphanedLedgerEntryRepairsFlag(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20,
	})

	// Simulate a crash after the ledger write but before the record was
	// flagged: the entry exists under the cycle-0 earn key
	if _, err := env.ledger.Insert(&models.StarEntry{
		EntryID:        "orphan-entry",
		ChildID:        child.ID,
		Kind:           models.EntryEarn,
		Stars:          20,
		SourceType:     models.KindLesson,
		ContentID:      lesson.ID,
		IdempotencyKey: models.EarnKey(child.ID, models.KindLesson, lesson.ID, 0),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.StarsJustAwarded != 0 {
		t.Errorf("StarsJustAwarded = %d, want 0 (entry already present)", result.StarsJustAwarded)
	}
	if !result.Record.StarsAwarded {
		t.Error("Expected StarsAwarded flag to be repaired")
	}
	if result.Record.StarsEarned != 20 {
		t.Errorf("StarsEarned = %d, want 20 absorbed from the ledger", result.Record.StarsEarned)
	}
	if entries := env.ledgerEntries(t, child.ID); len(entries) != 1 {
		t.Errorf("Ledger entries = %d, want 1", len(entries))
	}
}

func TestConcurrentCompletionsAwardOnce(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20,
	})

	const racers = 6

	// Hold every request at its first clock read, which fires after the
	// record load, so all of them carry the same stale pre-award state
	// into the completion path
	var arrivals int32
	release := make(chan struct{})
	env.rewards.now = func() time.Time {
		if atomic.AddInt32(&arrivals, 1) == racers {
			close(release)
		}
		<-release
		return time.Now()
	}

	var wg sync.WaitGroup
	errs := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent RecordInteraction failed: %v", err)
	}

	// The unique idempotency key settles the race: exactly one entry
	entries := env.ledgerEntries(t, child.ID)
	if len(entries) != 1 {
		t.Fatalf("Ledger entries = %d, want 1", len(entries))
	}

	stats, _, err := env.statsService.GetChildStats(child.ID)
	if err != nil {
		t.Fatalf("GetChildStats failed: %v", err)
	}
	if stats.TotalStars != 20 {
		t.Errorf("TotalStars = %d, want 20", stats.TotalStars)
	}
	if stats.LessonsCompleted != 1 {
		t.Errorf("LessonsCompleted = %d, want 1", stats.LessonsCompleted)
	}

	// Losers must not overwrite the winner's persisted earnings with their
	// stale zero
	rec, err := env.rewards.GetProgress(child.ID, lesson.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if rec.StarsEarned != 20 {
		t.Errorf("StarsEarned = %d, want 20", rec.StarsEarned)
	}
	if !rec.StarsAwarded {
		t.Error("Expected StarsAwarded flag to be set")
	}
}

func TestStartContentIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20,
	})

	first, err := env.rewards.StartContent(child.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartContent failed: %v", err)
	}
	if first.Status != models.StatusInProgress {
		t.Errorf("Status = %s, want in_progress", first.Status)
	}

	second, err := env.rewards.StartContent(child.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartContent failed: %v", err)
	}
	if second.Attempts != first.Attempts {
		t.Errorf("Attempts = %d, want %d (repeat start must not count)", second.Attempts, first.Attempts)
	}
	if second.StartedAt == nil || !second.StartedAt.Equal(*first.StartedAt) {
		t.Error("StartedAt must be stable across repeated starts")
	}
}

func TestBadgeAwardedOnCompletion(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	env.createBadge(t, "color-master", "Color Master")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors", StarsAwarded: 20, BadgeID: "color-master",
	})

	result, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if result.NewBadge != "color-master" {
		t.Errorf("NewBadge = %q, want color-master", result.NewBadge)
	}

	_, badges, err := env.statsService.GetChildStats(child.ID)
	if err != nil {
		t.Fatalf("GetChildStats failed: %v", err)
	}
	if len(badges) != 1 || badges[0].BadgeID != "color-master" {
		t.Errorf("Badges = %v, want [color-master]", badges)
	}
}

func TestUnknownChildAndContent(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors",
	})

	var notFound *NotFoundError

	_, err := env.rewards.RecordInteraction(9999, lesson.ID, Signal{Completed: true})
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError for unknown child, got %v", err)
	}

	_, err = env.rewards.RecordInteraction(child.ID, 9999, Signal{Completed: true})
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError for unknown content, got %v", err)
	}
}

func TestDeactivatedChildRejected(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	lesson := env.createContent(t, &models.ContentUnit{
		Kind: models.KindLesson, Name: "Colors",
	})

	if err := env.children.Deactivate(child.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	_, err := env.rewards.RecordInteraction(child.ID, lesson.ID, Signal{Completed: true})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("Expected ValidationError for deactivated child, got %v", err)
	}
}
