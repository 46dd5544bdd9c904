// Package handler translates HTTP requests into service calls and service
// results into JSON responses.
package handler

// Every error response has the same shape:
//   {"error": "not_found", "message": "user not found with id abc123"}
// Validation errors also carry "field".

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/auth"
)

// maxJSONBody caps JSON request bodies. Multipart bodies use the upload limit.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending input, for validation errors
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code. Anything that is not an
// *apperror.AppError becomes a generic 500 so internals never reach clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"
	message := appErr.Message

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	case errors.Is(err, apperror.ErrPartialFailure):
		errorType = "partial_failure"
	default:
		message = "An internal error occurred"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a JSON body into dst. Malformed bodies are a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return nil
}

// requireSelf returns Forbidden unless the authenticated user is userID.
func requireSelf(r *http.Request, userID string) error {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperror.Unauthorized("authentication required")
	}
	if callerID != userID {
		return apperror.Forbidden("you can only act on your own account")
	}
	return nil
}

// setToken exposes the token in the x-auth-token header, readable by
// browser clients on cross-origin requests.
func setToken(w http.ResponseWriter, token string) {
	w.Header().Set(auth.TokenHeader, token)
	w.Header().Set("Access-Control-Expose-Headers", auth.TokenHeader)
}
