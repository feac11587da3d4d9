package handlers

import (
	"context"
	"net/http"

	"mdsync-backend/internal/middleware"
	"mdsync-backend/internal/services"
)

// ReactionHandler handles reaction HTTP requests
type ReactionHandler struct {
	reactionService *services.ReactionService
	pairingService  *services.PairingService
	userService     *services.UserService
	pushService     *services.PushService
}

// NewReactionHandler creates a new reaction handler
func NewReactionHandler(
	reactionService *services.ReactionService,
	pairingService *services.PairingService,
	userService *services.UserService,
	pushService *services.PushService,
) *ReactionHandler {
	return &ReactionHandler{
		reactionService: reactionService,
		pairingService:  pairingService,
		userService:     userService,
		pushService:     pushService,
	}
}

// SendReactionRequest represents the request body for a reaction
type SendReactionRequest struct {
	Emoji string `json:"emoji"`
}

// SendReaction handles POST /api/v1/reactions. The reaction goes to the
// caller's partner.
func (h *ReactionHandler) SendReaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SendReactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	partnerID, err := h.pairingService.PartnerID(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "send reaction")
		return
	}

	fromName := h.userService.DisplayName(ctx, userID)
	reaction, err := h.reactionService.SendReaction(ctx, userID, fromName, partnerID, req.Emoji)
	if err != nil {
		respondServiceError(w, err, userID, "send reaction")
		return
	}

	if h.pushService.Enabled() {
		go h.pushService.NotifyUser(context.WithoutCancel(ctx), partnerID, fromName, reaction.Emoji)
	}

	respondJSON(w, http.StatusCreated, reaction)
}

// GetLatestReaction handles GET /api/v1/reactions/latest
func (h *ReactionHandler) GetLatestReaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	reaction, err := h.reactionService.LatestReaction(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "load reaction")
		return
	}
	if reaction == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, reaction)
}
