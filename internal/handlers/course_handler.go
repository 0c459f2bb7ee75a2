package handlers

import (
	"net/http"

	"starpath/internal/repository"
	"starpath/internal/service"
)

// CourseHandler handles course unlock HTTP requests
type CourseHandler struct {
	unlock  *service.UnlockService
	courses *repository.CourseRepository
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(unlock *service.UnlockService, courses *repository.CourseRepository) *CourseHandler {
	return &CourseHandler{unlock: unlock, courses: courses}
}

// ListCourseProgress retrieves a child's unlock state for every course
func (h *CourseHandler) ListCourseProgress(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}

	progress, err := h.courses.ListProgressForChild(childID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetCourseProgress recomputes and returns one course's state for a child
func (h *CourseHandler) GetCourseProgress(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}
	courseID, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, err)
		return
	}

	cp, err := h.unlock.ComputeStatus(childID, courseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// AssignCourses creates course progress rows for a child, unlocking the
// first eligible courses up to the configured cap.
func (h *CourseHandler) AssignCourses(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}

	assigned, err := h.unlock.AssignCourses(childID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assigned)
}
