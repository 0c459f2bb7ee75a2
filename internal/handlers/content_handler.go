package handlers

import (
	"net/http"

	"starpath/internal/models"
	"starpath/internal/service"
)

// ContentHandler handles the content, badge and course registries
type ContentHandler struct {
	catalog *service.CatalogService
}

// NewContentHandler creates a new content handler
func NewContentHandler(catalog *service.CatalogService) *ContentHandler {
	return &ContentHandler{catalog: catalog}
}

type registerContentRequest struct {
	Kind                 string `json:"kind" validate:"required"`
	Name                 string `json:"name" validate:"required,max=200"`
	Category             string `json:"category"`
	StarsAwarded         int    `json:"stars_awarded" validate:"gte=0"`
	PassingScorePercent  int    `json:"passing_score_percent" validate:"gte=0,lte=100"`
	RequiredWatchCount   int    `json:"required_watch_count" validate:"gte=0"`
	RequiredReadingCount int    `json:"required_reading_count" validate:"gte=0"`
	StarsPerReading      int    `json:"stars_per_reading" validate:"gte=0"`
	TotalStarsAwarded    int    `json:"total_stars_awarded" validate:"gte=0"`
	BadgeID              string `json:"badge_id"`
}

// RegisterContent adds a content unit with its reward metadata
func (h *ContentHandler) RegisterContent(w http.ResponseWriter, r *http.Request) {
	var req registerContentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	unit, err := h.catalog.RegisterContent(&models.ContentUnit{
		Kind:                 models.ContentKind(req.Kind),
		Name:                 req.Name,
		Category:             req.Category,
		StarsAwarded:         req.StarsAwarded,
		PassingScorePercent:  req.PassingScorePercent,
		RequiredWatchCount:   req.RequiredWatchCount,
		RequiredReadingCount: req.RequiredReadingCount,
		StarsPerReading:      req.StarsPerReading,
		TotalStarsAwarded:    req.TotalStarsAwarded,
		BadgeID:              req.BadgeID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}

// GetContent retrieves one content unit
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	unit, err := h.catalog.GetContent(contentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

type updateContentRequest struct {
	Name                 string `json:"name" validate:"required,max=200"`
	Category             string `json:"category"`
	StarsAwarded         int    `json:"stars_awarded" validate:"gte=0"`
	PassingScorePercent  int    `json:"passing_score_percent" validate:"gte=0,lte=100"`
	RequiredWatchCount   int    `json:"required_watch_count" validate:"gte=0"`
	RequiredReadingCount int    `json:"required_reading_count" validate:"gte=0"`
	StarsPerReading      int    `json:"stars_per_reading" validate:"gte=0"`
	TotalStarsAwarded    int    `json:"total_stars_awarded" validate:"gte=0"`
	BadgeID              string `json:"badge_id"`
}

// UpdateContent rewrites a unit's reward metadata; the kind is immutable
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateContentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	unit, err := h.catalog.UpdateContent(&models.ContentUnit{
		ID:                   contentID,
		Name:                 req.Name,
		Category:             req.Category,
		StarsAwarded:         req.StarsAwarded,
		PassingScorePercent:  req.PassingScorePercent,
		RequiredWatchCount:   req.RequiredWatchCount,
		RequiredReadingCount: req.RequiredReadingCount,
		StarsPerReading:      req.StarsPerReading,
		TotalStarsAwarded:    req.TotalStarsAwarded,
		BadgeID:              req.BadgeID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

type createBadgeRequest struct {
	ID          string `json:"id" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// CreateBadge adds a badge to the catalog
func (h *ContentHandler) CreateBadge(w http.ResponseWriter, r *http.Request) {
	var req createBadgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	badge := &models.Badge{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.catalog.CreateBadge(badge); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, badge)
}

// ListBadges retrieves the badge catalog
func (h *ContentHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.catalog.ListBadges()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, badges)
}

type createCourseRequest struct {
	Name           string              `json:"name" validate:"required,max=200"`
	PrerequisiteID *int64              `json:"prerequisite_id"`
	Items          []courseItemRequest `json:"items" validate:"dive"`
}

type courseItemRequest struct {
	ContentID int64 `json:"content_id" validate:"required"`
	Step      int   `json:"step" validate:"gte=1"`
	Required  bool  `json:"required"`
}

// CreateCourse adds a course with its ordered items
func (h *ContentHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	items := make([]models.CourseItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.CourseItem{
			ContentID: item.ContentID,
			Step:      item.Step,
			Required:  item.Required,
		})
	}

	course, err := h.catalog.CreateCourse(&models.Course{
		Name:           req.Name,
		PrerequisiteID: req.PrerequisiteID,
	}, items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}
