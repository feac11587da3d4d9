package handlers

import (
	"net/http"
	"strconv"

	"mdsync-backend/internal/middleware"
	"mdsync-backend/internal/services"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MoodHandler handles mood HTTP requests
type MoodHandler struct {
	moodService *services.MoodService
}

// NewMoodHandler creates a new mood handler
func NewMoodHandler(moodService *services.MoodService) *MoodHandler {
	return &MoodHandler{moodService: moodService}
}

// SetMoodRequest represents the request body for setting a mood
type SetMoodRequest struct {
	Emoji string `json:"emoji"`
}

// GetMood handles GET /api/v1/mood
func (h *MoodHandler) GetMood(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	mood, err := h.moodService.GetMood(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "load mood")
		return
	}

	respondJSON(w, http.StatusOK, mood)
}

// SetMood handles PUT /api/v1/mood
func (h *MoodHandler) SetMood(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SetMoodRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mood, err := h.moodService.SetMood(ctx, userID, req.Emoji)
	if err != nil {
		respondServiceError(w, err, userID, "set mood")
		return
	}

	respondJSON(w, http.StatusOK, mood)
}

// GetHistory handles GET /api/v1/mood/history?limit=N
func (h *MoodHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.moodService.GetMoodHistory(ctx, userID, limit)
	if err != nil {
		respondServiceError(w, err, userID, "load mood history")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// GetPartnerMood handles GET /api/v1/partner/mood
func (h *MoodHandler) GetPartnerMood(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	mood, err := h.moodService.GetPartnerMood(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "load partner mood")
		return
	}

	respondJSON(w, http.StatusOK, mood)
}
