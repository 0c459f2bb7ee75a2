package service

import (
	"errors"
	"testing"
	"time"

	"starpath/internal/models"
)

func TestAddStarsAccumulates(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	if _, err := env.statsService.AddStars(child.ID, 10); err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}
	stats, err := env.statsService.AddStars(child.ID, 15)
	if err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}

	if stats.TotalStars != 25 {
		t.Errorf("TotalStars = %d, want 25", stats.TotalStars)
	}
}

func TestAddStarsRejectsNegative(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	_, err := env.statsService.AddStars(child.ID, -5)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestStreakProgression(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	env.statsService.now = func() time.Time { return day }

	// Three consecutive days
	for i := 0; i < 3; i++ {
		if _, err := env.statsService.AddStars(child.ID, 5); err != nil {
			t.Fatalf("AddStars failed: %v", err)
		}
		day = day.AddDate(0, 0, 1)
	}

	stats, err := env.stats.Get(child.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", stats.CurrentStreak)
	}
	if stats.LongestStreak != 3 {
		t.Errorf("LongestStreak = %d, want 3", stats.LongestStreak)
	}

	// A gap resets the current streak but keeps the longest
	day = day.AddDate(0, 0, 2)
	if _, err := env.statsService.AddStars(child.ID, 5); err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}

	stats, err = env.stats.Get(child.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 after gap", stats.CurrentStreak)
	}
	if stats.LongestStreak != 3 {
		t.Errorf("LongestStreak = %d, want 3 after gap", stats.LongestStreak)
	}
}

func TestStreakSameDayCountsOnce(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	env.statsService.now = func() time.Time { return morning }
	if _, err := env.statsService.AddStars(child.ID, 5); err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}

	evening := morning.Add(12 * time.Hour)
	env.statsService.now = func() time.Time { return evening }
	stats, err := env.statsService.AddStars(child.ID, 5)
	if err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}

	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 for two same-day completions", stats.CurrentStreak)
	}
	// Stars still sum even when the streak doesn't move
	if stats.TotalStars != 10 {
		t.Errorf("TotalStars = %d, want 10", stats.TotalStars)
	}
}

func TestZeroStarsStillAdvancesStreak(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	stats, err := env.statsService.AddStars(child.ID, 0)
	if err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 after zero-star activity", stats.CurrentStreak)
	}
	if stats.TotalStars != 0 {
		t.Errorf("TotalStars = %d, want 0", stats.TotalStars)
	}
}

func TestAwardBadgeSetSemantics(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")
	env.createBadge(t, "first-book", "First Book")

	awarded, err := env.statsService.AwardBadge(child.ID, "first-book")
	if err != nil {
		t.Fatalf("AwardBadge failed: %v", err)
	}
	if !awarded {
		t.Error("Expected first award to succeed")
	}

	awarded, err = env.statsService.AwardBadge(child.ID, "first-book")
	if err != nil {
		t.Fatalf("AwardBadge failed: %v", err)
	}
	if awarded {
		t.Error("Expected second award to be a no-op")
	}

	stats, err := env.stats.Get(child.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.TotalBadges != 1 {
		t.Errorf("TotalBadges = %d, want 1", stats.TotalBadges)
	}
}

func TestAwardBadgeUnknownIsNoOp(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	awarded, err := env.statsService.AwardBadge(child.ID, "no-such-badge")
	if err != nil {
		t.Fatalf("Unknown badge must not error: %v", err)
	}
	if awarded {
		t.Error("Unknown badge must not be awarded")
	}
}

func TestRetractStars(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	if _, err := env.statsService.AddStars(child.ID, 20); err != nil {
		t.Fatalf("AddStars failed: %v", err)
	}
	if err := env.statsService.RetractStars(child.ID, 15); err != nil {
		t.Fatalf("RetractStars failed: %v", err)
	}

	stats, err := env.stats.Get(child.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.TotalStars != 5 {
		t.Errorf("TotalStars = %d, want 5", stats.TotalStars)
	}
	// Streaks are history: a retraction never rewinds them
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 after retraction", stats.CurrentStreak)
	}
}

func TestRecordCompletionCounters(t *testing.T) {
	env := setupTestEnv(t)
	child := env.createChild(t, "Ada")

	kinds := []models.ContentKind{
		models.KindLesson, models.KindBook, models.KindBook,
		models.KindChant, models.KindAudio, models.KindVideo, models.KindExplore,
	}
	for _, kind := range kinds {
		if err := env.statsService.RecordCompletion(child.ID, kind); err != nil {
			t.Fatalf("RecordCompletion(%s) failed: %v", kind, err)
		}
	}

	stats, err := env.stats.Get(child.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.LessonsCompleted != 1 {
		t.Errorf("LessonsCompleted = %d, want 1", stats.LessonsCompleted)
	}
	if stats.BooksRead != 2 {
		t.Errorf("BooksRead = %d, want 2", stats.BooksRead)
	}
	// Chants and audio assignments share a counter, as do the video kinds
	if stats.ChantsCompleted != 2 {
		t.Errorf("ChantsCompleted = %d, want 2", stats.ChantsCompleted)
	}
	if stats.VideosWatched != 2 {
		t.Errorf("VideosWatched = %d, want 2", stats.VideosWatched)
	}
}
