package handlers

import (
	"net/http"

	"starpath/internal/service"
)

// ProgressHandler handles progress and reward HTTP requests
type ProgressHandler struct {
	rewards *service.RewardService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(rewards *service.RewardService) *ProgressHandler {
	return &ProgressHandler{rewards: rewards}
}

// StartContent marks a content unit as started for a child
func (h *ProgressHandler) StartContent(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.rewards.StartContent(childID, contentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type interactionRequest struct {
	RequestID            string `json:"request_id"`
	Completed            bool   `json:"completed"`
	CompletionPercentage *int   `json:"completion_percentage" validate:"omitempty,gte=0,lte=100"`
	Score                *int   `json:"score" validate:"omitempty,gte=0"`
	MaxScore             *int   `json:"max_score" validate:"omitempty,gte=0"`
	RecordedAudioRef     string `json:"recorded_audio_ref"`
	ReadingSessionDone   bool   `json:"reading_session_complete"`
	ReadingDelta         int    `json:"reading_delta"`
	TimeSpentSeconds     int    `json:"time_spent_seconds" validate:"gte=0"`
}

// RecordInteraction runs the completion rule for the content kind and, when
// it completes the unit, dispatches the reward sequence.
func (h *ProgressHandler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req interactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.rewards.RecordInteraction(childID, contentID, service.Signal{
		RequestID:              req.RequestID,
		Completed:              req.Completed,
		CompletionPercentage:   req.CompletionPercentage,
		Score:                  req.Score,
		MaxScore:               req.MaxScore,
		RecordedAudioRef:       req.RecordedAudioRef,
		ReadingSessionComplete: req.ReadingSessionDone,
		ReadingDelta:           req.ReadingDelta,
		TimeSpentSeconds:       req.TimeSpentSeconds,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":             result.Record,
		"duplicate":          result.Duplicate,
		"stars_just_awarded": result.StarsJustAwarded,
		"total_stars":        result.TotalStars,
		"new_badge":          result.NewBadge,
	})
}

// GetProgress retrieves one progress record
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.rewards.GetProgress(childID, contentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ResetProgress is the admin reset: reverses any granted stars through a
// compensating ledger entry and clears the record for a fresh attempt.
func (h *ProgressHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.rewards.ResetProgress(childID, contentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
