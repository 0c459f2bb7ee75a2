package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"starpath/internal/logging"
	"starpath/internal/service"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Sugar.Errorw("failed to encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP status codes. Anything not in
// the taxonomy is a 500 and gets logged with the full chain.
func writeError(w http.ResponseWriter, err error) {
	var notFound *service.NotFoundError
	var validation *service.ValidationError
	var conflict *service.ConflictError

	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
	default:
		logging.Sugar.Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// decodeJSON unmarshals and validates a request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return service.NewValidationError("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return service.NewValidationError("invalid request: %v", err)
	}
	return nil
}

// pathID parses a numeric path parameter
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, service.NewValidationError("invalid %s: %s", name, r.PathValue(name))
	}
	return id, nil
}
