package repository

import (
	"database/sql"
	"fmt"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
)

// ProgressRepository handles database operations for progress records
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `
	id, child_id, content_id, status, progress_percentage, score, max_score,
	time_spent_seconds, attempts, watch_count, reading_count, recorded_audio_ref,
	stars_earned, stars_awarded, stars_awarded_at, reward_cycle,
	last_request_id, last_interaction_at, started_at, completed_at,
	created_at, updated_at
`

func scanProgress(scan func(dest ...interface{}) error) (*models.ProgressRecord, error) {
	rec := &models.ProgressRecord{}
	var status string
	var score, maxScore sql.NullInt64
	var starsAwardedAt, lastInteractionAt, startedAt, completedAt sql.NullTime

	err := scan(
		&rec.ID,
		&rec.ChildID,
		&rec.ContentID,
		&status,
		&rec.ProgressPercentage,
		&score,
		&maxScore,
		&rec.TimeSpentSeconds,
		&rec.Attempts,
		&rec.WatchCount,
		&rec.ReadingCount,
		&rec.RecordedAudioRef,
		&rec.StarsEarned,
		&rec.StarsAwarded,
		&starsAwardedAt,
		&rec.RewardCycle,
		&rec.LastRequestID,
		&lastInteractionAt,
		&startedAt,
		&completedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.ProgressStatus(status)
	if score.Valid {
		v := int(score.Int64)
		rec.Score = &v
	}
	if maxScore.Valid {
		v := int(maxScore.Int64)
		rec.MaxScore = &v
	}
	if starsAwardedAt.Valid {
		rec.StarsAwardedAt = &starsAwardedAt.Time
	}
	if lastInteractionAt.Valid {
		rec.LastInteractionAt = &lastInteractionAt.Time
	}
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return rec, nil
}

// Get retrieves the record for a (child, content) pair; returns nil when absent
func (r *ProgressRepository) Get(childID, contentID int64) (*models.ProgressRecord, error) {
	query := "SELECT " + progressColumns + " FROM progress_records WHERE child_id = ? AND content_id = ?"

	rec, err := scanProgress(r.db.QueryRow(query, childID, contentID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a fresh record for a (child, content) pair. A concurrent
// creator loses on the unique (child_id, content_id) index; callers should
// re-Get when the dialect classifies the error as a unique violation.
func (r *ProgressRepository) Create(childID, contentID int64, status models.ProgressStatus) (*models.ProgressRecord, error) {
	query := "INSERT INTO progress_records (child_id, content_id, status) VALUES (?, ?, ?)"
	_, err := r.db.ExecReturningID(query, childID, contentID, string(status))
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return r.Get(childID, contentID)
		}
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}

	return r.Get(childID, contentID)
}

// Save writes back all mutable fields of a progress record
func (r *ProgressRepository) Save(rec *models.ProgressRecord) error {
	query := `
		UPDATE progress_records
		SET status = ?, progress_percentage = ?, score = ?, max_score = ?,
		    time_spent_seconds = ?, attempts = ?, watch_count = ?,
		    reading_count = ?, recorded_audio_ref = ?, stars_earned = ?,
		    stars_awarded = ?, stars_awarded_at = ?, reward_cycle = ?,
		    last_request_id = ?, last_interaction_at = ?, started_at = ?,
		    completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		string(rec.Status),
		rec.ProgressPercentage,
		nullInt(rec.Score),
		nullInt(rec.MaxScore),
		rec.TimeSpentSeconds,
		rec.Attempts,
		rec.WatchCount,
		rec.ReadingCount,
		rec.RecordedAudioRef,
		rec.StarsEarned,
		rec.StarsAwarded,
		nullTime(rec.StarsAwardedAt),
		rec.RewardCycle,
		rec.LastRequestID,
		nullTime(rec.LastInteractionAt),
		nullTime(rec.StartedAt),
		nullTime(rec.CompletedAt),
		time.Now(),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress record: %w", err)
	}
	return nil
}

// MarkAwarded persists the single-award guard and the earned total without
// touching anything else. First writer wins: once the flag is set, a late
// caller carrying stale values can't overwrite the row.
func (r *ProgressRepository) MarkAwarded(recordID int64, stars int, at time.Time) error {
	query := `
		UPDATE progress_records
		SET stars_awarded = ?, stars_earned = ?, stars_awarded_at = ?, updated_at = ?
		WHERE id = ? AND stars_awarded = ?
	`
	_, err := r.db.Exec(query, true, stars, at, time.Now(), recordID, false)
	return err
}

// CompleteOnce transitions the row into completed unless it already is.
// Returns true when this call performed the transition, which arbitrates
// the one-shot completion side effects between concurrent requests.
func (r *ProgressRepository) CompleteOnce(recordID int64, at time.Time) (bool, error) {
	query := `
		UPDATE progress_records
		SET status = ?, progress_percentage = 100, completed_at = ?, updated_at = ?
		WHERE id = ? AND status != ?
	`
	result, err := r.db.Exec(query,
		string(models.StatusCompleted), at, time.Now(), recordID, string(models.StatusCompleted))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByChild retrieves all records for a child keyed by content ID
func (r *ProgressRepository) ListByChild(childID int64) (map[int64]models.ProgressRecord, error) {
	query := "SELECT " + progressColumns + " FROM progress_records WHERE child_id = ?"

	rows, err := r.db.Query(query, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[int64]models.ProgressRecord)
	for rows.Next() {
		rec, err := scanProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		records[rec.ContentID] = *rec
	}

	return records, rows.Err()
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
