package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"church-connect/internal/models"
)

// APIResponse is the envelope every handler writes. Error is only set on
// failures, Data only on successes.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, detail string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     detail,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// WriteError maps the policy error taxonomy onto HTTP statuses:
// NotFound 404, Conflict 409, InvalidState 422, Validation 400,
// everything else 500.
func WriteError(w http.ResponseWriter, message string, err error) {
	var (
		notFound     *models.NotFoundError
		invalidState *models.InvalidStateError
		conflict     *models.ConflictError
		validation   *models.ValidationError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
	case errors.As(err, &invalidState):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	}

	WriteJSON(w, status, ErrorResponse(message, err.Error()))
}
