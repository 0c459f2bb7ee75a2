package repository

import (
	"database/sql"
	"fmt"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
)

// ErrBadgeExists signals that a badge with the same ID is already in
// the catalog
var ErrBadgeExists = fmt.Errorf("badge already exists")

// BadgeRepository handles the badge catalog and per-child badge sets
type BadgeRepository struct {
	db database.DBTX
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db database.DBTX) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Create adds a badge to the catalog. Returns ErrBadgeExists when the
// badge ID is already taken.
func (r *BadgeRepository) Create(badge *models.Badge) error {
	query := "INSERT INTO badges (id, name, description) VALUES (?, ?, ?)"
	_, err := r.db.Exec(query, badge.ID, badge.Name, badge.Description)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return ErrBadgeExists
		}
		return fmt.Errorf("failed to create badge: %w", err)
	}
	return nil
}

// GetByID retrieves a badge by ID; returns nil when absent
func (r *BadgeRepository) GetByID(badgeID string) (*models.Badge, error) {
	query := "SELECT id, name, description, created_at FROM badges WHERE id = ?"

	badge := &models.Badge{}
	err := r.db.QueryRow(query, badgeID).Scan(
		&badge.ID,
		&badge.Name,
		&badge.Description,
		&badge.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return badge, nil
}

// List retrieves the badge catalog
func (r *BadgeRepository) List() ([]models.Badge, error) {
	rows, err := r.db.Query("SELECT id, name, description, created_at FROM badges ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		var badge models.Badge
		if err := rows.Scan(&badge.ID, &badge.Name, &badge.Description, &badge.CreatedAt); err != nil {
			return nil, err
		}
		badges = append(badges, badge)
	}

	return badges, rows.Err()
}

// Award adds a badge to the child's set. Returns false when the child
// already holds the badge (set semantics, enforced by the primary key).
func (r *BadgeRepository) Award(childID int64, badgeID string, at time.Time) (bool, error) {
	query := "INSERT INTO child_badges (child_id, badge_id, awarded_at) VALUES (?, ?, ?)"
	_, err := r.db.Exec(query, childID, badgeID, at)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	return true, nil
}

// ListForChild retrieves the badges a child holds, oldest first
func (r *BadgeRepository) ListForChild(childID int64) ([]models.ChildBadge, error) {
	query := `
		SELECT child_id, badge_id, awarded_at
		FROM child_badges
		WHERE child_id = ?
		ORDER BY awarded_at ASC
	`

	rows, err := r.db.Query(query, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []models.ChildBadge
	for rows.Next() {
		var cb models.ChildBadge
		if err := rows.Scan(&cb.ChildID, &cb.BadgeID, &cb.AwardedAt); err != nil {
			return nil, err
		}
		badges = append(badges, cb)
	}

	return badges, rows.Err()
}
