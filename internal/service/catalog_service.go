package service

import (
	"database/sql"
	"errors"

	"starpath/internal/models"
	"starpath/internal/repository"
)

// CatalogService manages the registries the engine keys everything on:
// child profiles, content units, badges and courses. Content and badge
// bodies live elsewhere; the engine stores identity plus reward metadata.
type CatalogService struct {
	children *repository.ChildRepository
	content  *repository.ContentRepository
	badges   *repository.BadgeRepository
	courses  *repository.CourseRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	children *repository.ChildRepository,
	content *repository.ContentRepository,
	badges *repository.BadgeRepository,
	courses *repository.CourseRepository,
) *CatalogService {
	return &CatalogService{
		children: children,
		content:  content,
		badges:   badges,
		courses:  courses,
	}
}

// CreateChild registers a new child profile
func (s *CatalogService) CreateChild(parentEmail, name string, age int) (*models.ChildProfile, error) {
	if name == "" {
		return nil, NewValidationError("child name is required")
	}
	if age < 0 {
		return nil, NewValidationError("age must be >= 0, got %d", age)
	}
	return s.children.Create(parentEmail, name, age)
}

// GetChild retrieves a child profile
func (s *CatalogService) GetChild(childID int64) (*models.ChildProfile, error) {
	child, err := s.children.GetByID(childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, NewNotFoundError("child", childID)
	}
	return child, nil
}

// ListChildren retrieves all child profiles
func (s *CatalogService) ListChildren() ([]models.ChildProfile, error) {
	return s.children.List()
}

// DeactivateChild soft-deletes a child profile; progress data stays
func (s *CatalogService) DeactivateChild(childID int64) error {
	err := s.children.Deactivate(childID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError("child", childID)
	}
	return err
}

// RegisterContent adds a content unit to the registry
func (s *CatalogService) RegisterContent(unit *models.ContentUnit) (*models.ContentUnit, error) {
	if !models.ValidKind(unit.Kind) {
		return nil, NewValidationError("unknown content kind: %s", unit.Kind)
	}
	if unit.Name == "" {
		return nil, NewValidationError("content name is required")
	}
	if unit.StarsAwarded < 0 || unit.StarsPerReading < 0 || unit.TotalStarsAwarded < 0 {
		return nil, NewValidationError("star amounts must be >= 0")
	}
	return s.content.Create(unit)
}

// GetContent retrieves a content unit
func (s *CatalogService) GetContent(contentID int64) (*models.ContentUnit, error) {
	unit, err := s.content.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, NewNotFoundError("content unit", contentID)
	}
	return unit, nil
}

// UpdateContent rewrites a unit's reward metadata. The kind is fixed at
// registration; rewards and thresholds may change.
func (s *CatalogService) UpdateContent(unit *models.ContentUnit) (*models.ContentUnit, error) {
	existing, err := s.GetContent(unit.ID)
	if err != nil {
		return nil, err
	}

	if unit.Name == "" {
		return nil, NewValidationError("content name is required")
	}
	if unit.StarsAwarded < 0 || unit.StarsPerReading < 0 || unit.TotalStarsAwarded < 0 {
		return nil, NewValidationError("star amounts must be >= 0")
	}

	unit.Kind = existing.Kind
	if err := s.content.Update(unit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("content unit", unit.ID)
		}
		return nil, err
	}
	return s.content.GetByID(unit.ID)
}

// CreateBadge adds a badge to the catalog
func (s *CatalogService) CreateBadge(badge *models.Badge) error {
	if badge.ID == "" || badge.Name == "" {
		return NewValidationError("badge id and name are required")
	}
	if err := s.badges.Create(badge); err != nil {
		if errors.Is(err, repository.ErrBadgeExists) {
			return &ConflictError{Msg: "badge " + badge.ID + " already exists"}
		}
		return err
	}
	return nil
}

// ListBadges retrieves the badge catalog
func (s *CatalogService) ListBadges() ([]models.Badge, error) {
	return s.badges.List()
}

// CreateCourse adds a course with its ordered items
func (s *CatalogService) CreateCourse(course *models.Course, items []models.CourseItem) (*models.Course, error) {
	if course.Name == "" {
		return nil, NewValidationError("course name is required")
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Step < 1 {
			return nil, NewValidationError("course item step must be >= 1, got %d", item.Step)
		}
		ids = append(ids, item.ContentID)
	}

	units, err := s.content.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, ok := units[item.ContentID]; !ok {
			return nil, NewNotFoundError("content unit", item.ContentID)
		}
	}

	return s.courses.Create(course, items)
}
