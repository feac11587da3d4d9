package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mdsync-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends v as a JSON body
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// decodeJSON reads the request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return models.ErrInvalidInput
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ErrInvalidInput
	}
	return nil
}

// statusFor maps a validation error code to its HTTP status
func statusFor(ve *models.ValidationError) int {
	switch ve {
	case models.ErrCandidateNotFound, models.ErrUserNotFound, models.ErrMessageNotFound:
		return http.StatusNotFound
	case models.ErrCandidateAlreadyPaired, models.ErrAlreadyPaired, models.ErrAlreadyReplied,
		models.ErrChatNotEnabled, models.ErrNotPaired, models.ErrNotRepliable:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// respondServiceError translates a service error into a response. Validation
// errors are shown as is; anything else is logged and hidden.
func respondServiceError(w http.ResponseWriter, err error, userID, action string) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		respondJSON(w, statusFor(ve), ErrorResponse{Error: ve.Message, Code: ve.Code})
		return
	}

	log.Error().
		Err(err).
		Str("user_id", userID).
		Msg("Failed to " + action)

	code := "internal"
	if models.IsStorage(err) {
		code = "storage"
	}
	respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to " + action, Code: code})
}
