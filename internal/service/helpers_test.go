package service

import (
	"path/filepath"
	"testing"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
	"starpath/internal/repository"
)

// testEnv wires the full service stack onto a throwaway SQLite database
type testEnv struct {
	db *database.DB

	children *repository.ChildRepository
	content  *repository.ContentRepository
	progress *repository.ProgressRepository
	ledger   *repository.LedgerRepository
	stats    *repository.StatsRepository
	badges   *repository.BadgeRepository
	courses  *repository.CourseRepository

	statsService  *StatsService
	unlockService *UnlockService
	rewards       *RewardService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	env := &testEnv{
		db:       db,
		children: repository.NewChildRepository(db),
		content:  repository.NewContentRepository(db),
		progress: repository.NewProgressRepository(db),
		ledger:   repository.NewLedgerRepository(db),
		stats:    repository.NewStatsRepository(db),
		badges:   repository.NewBadgeRepository(db),
		courses:  repository.NewCourseRepository(db),
	}

	env.statsService = NewStatsService(env.stats, env.badges, time.UTC)
	env.unlockService = NewUnlockService(env.courses, env.progress, 2)
	// A zero duplicate window keeps rapid sequential test calls from being
	// suppressed; the window behavior has its own test
	env.rewards = NewRewardService(
		env.children, env.content, env.progress, env.ledger,
		env.statsService, env.unlockService, NoopNotifier{}, 0,
	)

	return env
}

func (e *testEnv) createChild(t *testing.T, name string) *models.ChildProfile {
	t.Helper()
	child, err := e.children.Create("parent@example.com", name, 7)
	if err != nil {
		t.Fatalf("Failed to create child: %v", err)
	}
	return child
}

func (e *testEnv) createContent(t *testing.T, unit *models.ContentUnit) *models.ContentUnit {
	t.Helper()
	created, err := e.content.Create(unit)
	if err != nil {
		t.Fatalf("Failed to create content unit: %v", err)
	}
	return created
}

func (e *testEnv) createBadge(t *testing.T, id, name string) {
	t.Helper()
	if err := e.badges.Create(&models.Badge{ID: id, Name: name}); err != nil {
		t.Fatalf("Failed to create badge: %v", err)
	}
}

func (e *testEnv) completeDirectly(t *testing.T, childID, contentID int64) {
	t.Helper()
	rec, err := e.progress.Create(childID, contentID, models.StatusNotStarted)
	if err != nil {
		t.Fatalf("Failed to create progress record: %v", err)
	}
	rec.Complete(time.Now())
	if err := e.progress.Save(rec); err != nil {
		t.Fatalf("Failed to save progress record: %v", err)
	}
}

func (e *testEnv) ledgerEntries(t *testing.T, childID int64) []models.StarEntry {
	t.Helper()
	entries, err := e.ledger.ListForChild(childID)
	if err != nil {
		t.Fatalf("Failed to list ledger entries: %v", err)
	}
	return entries
}

func intPtr(v int) *int { return &v }
