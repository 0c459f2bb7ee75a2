package handlers

import (
	"net/http"

	"starpath/internal/service"
)

// ChildrenHandler handles child profile HTTP requests
type ChildrenHandler struct {
	catalog *service.CatalogService
	unlock  *service.UnlockService
}

// NewChildrenHandler creates a new children handler
func NewChildrenHandler(catalog *service.CatalogService, unlock *service.UnlockService) *ChildrenHandler {
	return &ChildrenHandler{catalog: catalog, unlock: unlock}
}

type createChildRequest struct {
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
	Name        string `json:"name" validate:"required,max=100"`
	Age         int    `json:"age" validate:"gte=0,lte=18"`
}

// CreateChild registers a child profile and assigns the course catalog
func (h *ChildrenHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req createChildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	child, err := h.catalog.CreateChild(req.ParentEmail, req.Name, req.Age)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.unlock.AssignCourses(child.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, child)
}

// GetChild retrieves one child profile
func (h *ChildrenHandler) GetChild(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	child, err := h.catalog.GetChild(childID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// ListChildren retrieves all child profiles
func (h *ChildrenHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.catalog.ListChildren()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// DeactivateChild soft-deletes a child profile
func (h *ChildrenHandler) DeactivateChild(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.catalog.DeactivateChild(childID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
