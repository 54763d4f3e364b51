package server

import (
	"encoding/json"
	"net/http"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// SuccessResponse wraps successful API responses.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the error envelope. Code carries the pipeline error code
// when one exists.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response.
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// HandleError maps a pipeline error onto the wire: status from its
// category, message and code in the envelope.
func HandleError(w http.ResponseWriter, err error) {
	JSON(w, statusForError(err), ErrorResponse{
		Error: err.Error(),
		Code:  eserrors.GetCode(err),
	})
}

// statusForError maps the error taxonomy to HTTP statuses. Validation is
// the caller's fault; everything else is an upstream or internal problem.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case eserrors.IsValidation(err):
		return http.StatusBadRequest
	case eserrors.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	case eserrors.IsTransient(err):
		return http.StatusBadGateway
	case eserrors.IsCacheBackend(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
