package repository

import (
	"database/sql"
	"fmt"
	"time"

	"starpath/internal/database"
	"starpath/internal/models"
)

// CourseRepository handles courses, their ordered items and per-child
// course progress rows
type CourseRepository struct {
	db database.DBTX
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db database.DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create adds a course and its items
func (r *CourseRepository) Create(course *models.Course, items []models.CourseItem) (*models.Course, error) {
	query := "INSERT INTO courses (name, prerequisite_id) VALUES (?, ?)"

	var prereq interface{}
	if course.PrerequisiteID != nil {
		prereq = *course.PrerequisiteID
	}

	id, err := r.db.ExecReturningID(query, course.Name, prereq)
	if err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	course.ID = id

	for _, item := range items {
		itemQuery := "INSERT INTO course_items (course_id, content_id, step, required) VALUES (?, ?, ?, ?)"
		if _, err := r.db.Exec(itemQuery, id, item.ContentID, item.Step, item.Required); err != nil {
			return nil, fmt.Errorf("failed to add course item: %w", err)
		}
	}

	return course, nil
}

// GetByID retrieves a course by ID; returns nil when absent
func (r *CourseRepository) GetByID(courseID int64) (*models.Course, error) {
	query := "SELECT id, name, prerequisite_id, created_at FROM courses WHERE id = ?"

	course := &models.Course{}
	var prereq sql.NullInt64
	err := r.db.QueryRow(query, courseID).Scan(
		&course.ID,
		&course.Name,
		&prereq,
		&course.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if prereq.Valid {
		course.PrerequisiteID = &prereq.Int64
	}
	return course, nil
}

// List retrieves all courses in creation order
func (r *CourseRepository) List() ([]models.Course, error) {
	rows, err := r.db.Query("SELECT id, name, prerequisite_id, created_at FROM courses ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var course models.Course
		var prereq sql.NullInt64
		if err := rows.Scan(&course.ID, &course.Name, &prereq, &course.CreatedAt); err != nil {
			return nil, err
		}
		if prereq.Valid {
			course.PrerequisiteID = &prereq.Int64
		}
		courses = append(courses, course)
	}

	return courses, rows.Err()
}

// GetItems retrieves a course's items ordered by step
func (r *CourseRepository) GetItems(courseID int64) ([]models.CourseItem, error) {
	query := `
		SELECT course_id, content_id, step, required
		FROM course_items
		WHERE course_id = ?
		ORDER BY step ASC, content_id ASC
	`

	rows, err := r.db.Query(query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CourseItem
	for rows.Next() {
		var item models.CourseItem
		if err := rows.Scan(&item.CourseID, &item.ContentID, &item.Step, &item.Required); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// CoursesContaining returns the IDs of courses that include a content unit
func (r *CourseRepository) CoursesContaining(contentID int64) ([]int64, error) {
	rows, err := r.db.Query("SELECT course_id FROM course_items WHERE content_id = ?", contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetProgress retrieves the course progress row for a (child, course) pair;
// returns nil when absent
func (r *CourseRepository) GetProgress(childID, courseID int64) (*models.CourseProgress, error) {
	query := `
		SELECT child_id, course_id, status, progress_percentage, current_step,
		       started_at, completed_at, updated_at
		FROM course_progress
		WHERE child_id = ? AND course_id = ?
	`

	cp, err := scanCourseProgress(r.db.QueryRow(query, childID, courseID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// ListProgressForChild retrieves all course progress rows for a child
func (r *CourseRepository) ListProgressForChild(childID int64) ([]models.CourseProgress, error) {
	query := `
		SELECT child_id, course_id, status, progress_percentage, current_step,
		       started_at, completed_at, updated_at
		FROM course_progress
		WHERE child_id = ?
		ORDER BY course_id
	`

	rows, err := r.db.Query(query, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.CourseProgress
	for rows.Next() {
		cp, err := scanCourseProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *cp)
	}

	return list, rows.Err()
}

// SaveProgress upserts a course progress row
func (r *CourseRepository) SaveProgress(cp *models.CourseProgress) error {
	existing, err := r.GetProgress(cp.ChildID, cp.CourseID)
	if err != nil {
		return err
	}

	if existing == nil {
		query := `
			INSERT INTO course_progress
				(child_id, course_id, status, progress_percentage, current_step,
				 started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.db.Exec(query,
			cp.ChildID,
			cp.CourseID,
			string(cp.Status),
			cp.ProgressPercentage,
			cp.CurrentStep,
			nullTime(cp.StartedAt),
			nullTime(cp.CompletedAt),
		)
		if err != nil && !r.db.GetDialect().IsUniqueViolation(err) {
			return fmt.Errorf("failed to insert course progress: %w", err)
		}
		if err == nil {
			return nil
		}
		// Lost a concurrent insert race, fall through to update
	}

	query := `
		UPDATE course_progress
		SET status = ?, progress_percentage = ?, current_step = ?,
		    started_at = ?, completed_at = ?, updated_at = ?
		WHERE child_id = ? AND course_id = ?
	`
	_, err = r.db.Exec(query,
		string(cp.Status),
		cp.ProgressPercentage,
		cp.CurrentStep,
		nullTime(cp.StartedAt),
		nullTime(cp.CompletedAt),
		time.Now(),
		cp.ChildID,
		cp.CourseID,
	)
	if err != nil {
		return fmt.Errorf("failed to update course progress: %w", err)
	}
	return nil
}

func scanCourseProgress(scan func(dest ...interface{}) error) (*models.CourseProgress, error) {
	cp := &models.CourseProgress{}
	var status string
	var startedAt, completedAt sql.NullTime

	err := scan(
		&cp.ChildID,
		&cp.CourseID,
		&status,
		&cp.ProgressPercentage,
		&cp.CurrentStep,
		&startedAt,
		&completedAt,
		&cp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cp.Status = models.ProgressStatus(status)
	if startedAt.Valid {
		cp.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		cp.CompletedAt = &completedAt.Time
	}
	return cp, nil
}
