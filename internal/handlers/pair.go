package handlers

import (
	"net/http"

	"mdsync-backend/internal/middleware"
	"mdsync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PairHandler handles pairing HTTP requests
type PairHandler struct {
	pairingService *services.PairingService
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairingService *services.PairingService) *PairHandler {
	return &PairHandler{
		pairingService: pairingService,
	}
}

// CreatePairRequest represents the request body for pairing
type CreatePairRequest struct {
	PartnerID string `json:"partner_id"`
}

// GetPairing handles GET /api/v1/pairing
func (h *PairHandler) GetPairing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	status, err := h.pairingService.GetPairingStatus(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "load pairing")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// CreatePair handles POST /api/v1/pairing
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreatePairRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	partnerID, err := h.pairingService.RequestPairing(ctx, userID, req.PartnerID)
	if err != nil {
		respondServiceError(w, err, userID, "pair")
		return
	}

	status, err := h.pairingService.GetPairingStatus(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "load pairing")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("partner_id", partnerID).
		Msg("Pairing requested")

	respondJSON(w, http.StatusOK, status)
}

// DeletePair handles DELETE /api/v1/pairing
func (h *PairHandler) DeletePair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.pairingService.Unpair(ctx, userID); err != nil {
		respondServiceError(w, err, userID, "unpair")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
