package repository

import (
	"database/sql"
	"fmt"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
)

// StatsRepository handles database operations for per-child stat rollups.
// All writes go through the stats service; nothing else mutates these rows.
type StatsRepository struct {
	db database.DBTX
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db database.DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetOrCreate retrieves the stats row for a child, creating it lazily
func (r *StatsRepository) GetOrCreate(childID int64) (*models.ChildStats, error) {
	stats, err := r.Get(childID)
	if err != nil {
		return nil, err
	}
	if stats != nil {
		return stats, nil
	}

	_, err = r.db.Exec("INSERT INTO child_stats (child_id) VALUES (?)", childID)
	if err != nil && !r.db.GetDialect().IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create stats row: %w", err)
	}

	return r.Get(childID)
}

// Get retrieves the stats row for a child; returns nil when absent
func (r *StatsRepository) Get(childID int64) (*models.ChildStats, error) {
	query := `
		SELECT child_id, total_stars, current_streak, longest_streak,
		       last_activity_date, total_badges, lessons_completed,
		       activities_completed, chants_completed, books_read,
		       videos_watched, updated_at
		FROM child_stats
		WHERE child_id = ?
	`

	stats := &models.ChildStats{}
	var lastActivity sql.NullTime

	err := r.db.QueryRow(query, childID).Scan(
		&stats.ChildID,
		&stats.TotalStars,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&lastActivity,
		&stats.TotalBadges,
		&stats.LessonsCompleted,
		&stats.ActivitiesCompleted,
		&stats.ChantsCompleted,
		&stats.BooksRead,
		&stats.VideosWatched,
		&stats.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastActivity.Valid {
		stats.LastActivityDate = &lastActivity.Time
	}
	return stats, nil
}

// AddStars atomically increments total_stars. The increment happens in SQL,
// never as read-modify-write in application code, so concurrent completions
// across different content can't lose updates.
func (r *StatsRepository) AddStars(childID int64, amount int) error {
	query := "UPDATE child_stats SET total_stars = total_stars + ?, updated_at = ? WHERE child_id = ?"
	_, err := r.db.Exec(query, amount, time.Now(), childID)
	return err
}

// SetTotalStars overwrites total_stars; used only by reconciliation repair
func (r *StatsRepository) SetTotalStars(childID int64, total int) error {
	query := "UPDATE child_stats SET total_stars = ?, updated_at = ? WHERE child_id = ?"
	_, err := r.db.Exec(query, total, time.Now(), childID)
	return err
}

// SetStreak writes the streak fields and the day-granular activity date
func (r *StatsRepository) SetStreak(childID int64, current, longest int, lastActivity time.Time) error {
	query := `
		UPDATE child_stats
		SET current_streak = ?, longest_streak = ?, last_activity_date = ?, updated_at = ?
		WHERE child_id = ?
	`
	_, err := r.db.Exec(query, current, longest, lastActivity, time.Now(), childID)
	return err
}

// IncrementBadges atomically bumps the badge counter
func (r *StatsRepository) IncrementBadges(childID int64) error {
	query := "UPDATE child_stats SET total_badges = total_badges + 1, updated_at = ? WHERE child_id = ?"
	_, err := r.db.Exec(query, time.Now(), childID)
	return err
}

// IncrementCategory bumps the completion counter for a content kind
func (r *StatsRepository) IncrementCategory(childID int64, kind models.ContentKind) error {
	var column string
	switch kind {
	case models.KindLesson:
		column = "lessons_completed"
	case models.KindActivity:
		column = "activities_completed"
	case models.KindChant, models.KindAudio:
		column = "chants_completed"
	case models.KindBook:
		column = "books_read"
	case models.KindVideo, models.KindExplore:
		column = "videos_watched"
	default:
		return fmt.Errorf("unknown content kind: %s", kind)
	}

	query := fmt.Sprintf("UPDATE child_stats SET %s = %s + 1, updated_at = ? WHERE child_id = ?", column, column)
	_, err := r.db.Exec(query, time.Now(), childID)
	return err
}
