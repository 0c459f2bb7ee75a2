package repository

import (
	"database/sql"
	"fmt"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
)

// ChildRepository handles database operations for child profiles
type ChildRepository struct {
	db database.DBTX
}

// NewChildRepository creates a new child repository
func NewChildRepository(db database.DBTX) *ChildRepository {
	return &ChildRepository{db: db}
}

// Create creates a new child profile
func (r *ChildRepository) Create(parentEmail, name string, age int) (*models.ChildProfile, error) {
	query := "INSERT INTO children (parent_email, name, age, is_active) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, parentEmail, name, age, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}

	return &models.ChildProfile{
		ID:          id,
		ParentEmail: parentEmail,
		Name:        name,
		Age:         age,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}, nil
}

// GetByID retrieves a child profile by ID; returns nil when absent
func (r *ChildRepository) GetByID(childID int64) (*models.ChildProfile, error) {
	query := `
		SELECT id, parent_email, name, age, is_active, created_at, updated_at
		FROM children
		WHERE id = ?
	`

	child := &models.ChildProfile{}
	err := r.db.QueryRow(query, childID).Scan(
		&child.ID,
		&child.ParentEmail,
		&child.Name,
		&child.Age,
		&child.IsActive,
		&child.CreatedAt,
		&child.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return child, nil
}

// List retrieves all child profiles, active first
func (r *ChildRepository) List() ([]models.ChildProfile, error) {
	query := `
		SELECT id, parent_email, name, age, is_active, created_at, updated_at
		FROM children
		ORDER BY is_active DESC, name ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var children []models.ChildProfile
	for rows.Next() {
		var child models.ChildProfile
		err := rows.Scan(
			&child.ID,
			&child.ParentEmail,
			&child.Name,
			&child.Age,
			&child.IsActive,
			&child.CreatedAt,
			&child.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return children, rows.Err()
}

// Deactivate soft-deletes a child profile. Progress data stays in place.
func (r *ChildRepository) Deactivate(childID int64) error {
	query := "UPDATE children SET is_active = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.Exec(query, false, time.Now(), childID)
	if err != nil {
		return fmt.Errorf("failed to deactivate child: %w", err)
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
