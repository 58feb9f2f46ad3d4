package httputil

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kassandra-app/kassandra/internal/apperr"
)

// Machine-readable error codes returned alongside messages.
const (
	CodeNotFound        = "not_found"
	CodeValidation      = "validation_failed"
	CodeConflict        = "conflict"
	CodeInternal        = "internal_error"
	CodeTooManyRequests = "too_many_requests"
	CodeUnauthorized    = "unauthorized"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondError sends a JSON error response with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// RespondErrorWithCode sends a JSON error response with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

// RespondAppError maps the engine's error taxonomy onto HTTP statuses.
// Store failures are reported without the underlying detail.
func RespondAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		RespondErrorWithCode(w, err.Error(), CodeNotFound, http.StatusNotFound)
	case errors.Is(err, apperr.ErrValidation):
		RespondErrorWithCode(w, err.Error(), CodeValidation, http.StatusBadRequest)
	case errors.Is(err, apperr.ErrConflict):
		RespondErrorWithCode(w, err.Error(), CodeConflict, http.StatusConflict)
	default:
		RespondErrorWithCode(w, "internal server error", CodeInternal, http.StatusInternalServerError)
	}
}
