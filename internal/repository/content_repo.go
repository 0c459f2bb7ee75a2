package repository

import (
	"database/sql"
	"fmt"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
)

// ContentRepository handles database operations for the content registry
type ContentRepository struct {
	db database.DBTX
}

// NewContentRepository creates a new content repository
func NewContentRepository(db database.DBTX) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create registers a new content unit
func (r *ContentRepository) Create(unit *models.ContentUnit) (*models.ContentUnit, error) {
	query := `
		INSERT INTO content_units
			(kind, name, category, stars_awarded, passing_score_percent,
			 required_watch_count, required_reading_count, stars_per_reading,
			 total_stars_awarded, badge_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.ExecReturningID(query,
		string(unit.Kind),
		unit.Name,
		unit.Category,
		unit.StarsAwarded,
		unit.PassingScorePercent,
		unit.RequiredWatchCount,
		unit.RequiredReadingCount,
		unit.StarsPerReading,
		unit.TotalStarsAwarded,
		unit.BadgeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create content unit: %w", err)
	}

	return r.GetByID(id)
}

// GetByID retrieves a content unit by ID; returns nil when absent
func (r *ContentRepository) GetByID(contentID int64) (*models.ContentUnit, error) {
	query := `
		SELECT id, kind, name, category, stars_awarded, passing_score_percent,
		       required_watch_count, required_reading_count, stars_per_reading,
		       total_stars_awarded, badge_id, created_at, updated_at
		FROM content_units
		WHERE id = ?
	`

	unit := &models.ContentUnit{}
	var kind string
	err := r.db.QueryRow(query, contentID).Scan(
		&unit.ID,
		&kind,
		&unit.Name,
		&unit.Category,
		&unit.StarsAwarded,
		&unit.PassingScorePercent,
		&unit.RequiredWatchCount,
		&unit.RequiredReadingCount,
		&unit.StarsPerReading,
		&unit.TotalStarsAwarded,
		&unit.BadgeID,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	unit.Kind = models.ContentKind(kind)
	return unit, nil
}

// GetByIDs retrieves several content units keyed by ID
func (r *ContentRepository) GetByIDs(contentIDs []int64) (map[int64]models.ContentUnit, error) {
	units := make(map[int64]models.ContentUnit, len(contentIDs))
	for _, id := range contentIDs {
		unit, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		if unit != nil {
			units[id] = *unit
		}
	}
	return units, nil
}

// Update rewrites the reward and completion-rule metadata of a content unit
func (r *ContentRepository) Update(unit *models.ContentUnit) error {
	query := `
		UPDATE content_units
		SET name = ?, category = ?, stars_awarded = ?, passing_score_percent = ?,
		    required_watch_count = ?, required_reading_count = ?,
		    stars_per_reading = ?, total_stars_awarded = ?, badge_id = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		unit.Name,
		unit.Category,
		unit.StarsAwarded,
		unit.PassingScorePercent,
		unit.RequiredWatchCount,
		unit.RequiredReadingCount,
		unit.StarsPerReading,
		unit.TotalStarsAwarded,
		unit.BadgeID,
		time.Now(),
		unit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update content unit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
