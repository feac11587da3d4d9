package handlers

import (
	"context"
	"net/http"

	"mdsync-backend/internal/middleware"
	"mdsync-backend/internal/models"
	"mdsync-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ChatHandler handles cooldown chat HTTP requests. Every route acts on the
// caller's current pair.
type ChatHandler struct {
	chatService    *services.ChatService
	pairingService *services.PairingService
	userService    *services.UserService
	pushService    *services.PushService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService *services.ChatService,
	pairingService *services.PairingService,
	userService *services.UserService,
	pushService *services.PushService,
) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		pairingService: pairingService,
		userService:    userService,
		pushService:    pushService,
	}
}

// ChatOverview is the chat state as seen by one member
type ChatOverview struct {
	PairID       string                   `json:"pair_id"`
	State        models.ChatState         `json:"state"`
	Status       *models.ChatStatus       `json:"status"`
	Notification *models.ChatNotification `json:"notification"`
	Unread       bool                     `json:"unread"`
}

// SendMessageRequest represents the request body for a chat message
type SendMessageRequest struct {
	Text  *string            `json:"text"`
	Emoji *string            `json:"emoji"`
	Type  models.MessageType `json:"type"`
}

// QuickResponseRequest represents the request body for a quick response
type QuickResponseRequest struct {
	Type models.MessageType `json:"type"`
}

// ReplyRequest represents the request body for a reply
type ReplyRequest struct {
	Status models.ReplyStatus `json:"status"`
}

// StarRequest carries the star flag the client currently shows
type StarRequest struct {
	IsStarred bool `json:"is_starred"`
}

// pairFor resolves the caller's pair or writes the error response
func (h *ChatHandler) pairFor(w http.ResponseWriter, r *http.Request) (userID, pairID string, ok bool) {
	userID = middleware.GetUserID(r.Context())
	pairID, err := h.pairingService.PairIDFor(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, userID, "resolve pair")
		return "", "", false
	}
	return userID, pairID, true
}

// GetChat handles GET /api/v1/chat
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}

	status, err := h.chatService.Status(ctx, pairID)
	if err != nil {
		respondServiceError(w, err, userID, "load chat status")
		return
	}
	notification, err := h.chatService.Notification(ctx, pairID)
	if err != nil {
		respondServiceError(w, err, userID, "load chat notification")
		return
	}

	respondJSON(w, http.StatusOK, ChatOverview{
		PairID:       pairID,
		State:        status.State(),
		Status:       status,
		Notification: notification,
		Unread:       notification.UnreadFor(userID),
	})
}

// EnableChat handles POST /api/v1/chat/enable
func (h *ChatHandler) EnableChat(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}
	if err := h.chatService.EnableChat(r.Context(), pairID); err != nil {
		respondServiceError(w, err, userID, "enable chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisableChat handles POST /api/v1/chat/disable
func (h *ChatHandler) DisableChat(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}
	if err := h.chatService.DisableChat(r.Context(), pairID); err != nil {
		respondServiceError(w, err, userID, "disable chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/v1/chat/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}
	messages, err := h.chatService.ListMessages(r.Context(), pairID)
	if err != nil {
		respondServiceError(w, err, userID, "load messages")
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/v1/chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fromName := h.userService.DisplayName(ctx, userID)
	msg, err := h.chatService.SendMessage(ctx, services.SendMessageInput{
		PairID:   pairID,
		FromID:   userID,
		FromName: fromName,
		Text:     req.Text,
		Emoji:    req.Emoji,
		Type:     req.Type,
	})
	if err != nil {
		respondServiceError(w, err, userID, "send message")
		return
	}

	h.notifyPartner(ctx, userID, fromName, msg)
	respondJSON(w, http.StatusCreated, msg)
}

// SendQuickResponse handles POST /api/v1/chat/quick
func (h *ChatHandler) SendQuickResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}

	var req QuickResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fromName := h.userService.DisplayName(ctx, userID)
	msg, err := h.chatService.SendQuickResponse(ctx, pairID, userID, fromName, req.Type)
	if err != nil {
		respondServiceError(w, err, userID, "send quick response")
		return
	}

	h.notifyPartner(ctx, userID, fromName, msg)
	respondJSON(w, http.StatusCreated, msg)
}

// ReplyToMessage handles POST /api/v1/chat/messages/{message_id}/reply
func (h *ChatHandler) ReplyToMessage(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.ReplyToMessage(r.Context(), pairID, chi.URLParam(r, "message_id"), req.Status, userID)
	if err != nil {
		respondServiceError(w, err, userID, "reply to message")
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// ToggleStar handles POST /api/v1/chat/messages/{message_id}/star
func (h *ChatHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}

	var req StarRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	starred, err := h.chatService.ToggleStar(r.Context(), pairID, chi.URLParam(r, "message_id"), req.IsStarred)
	if err != nil {
		respondServiceError(w, err, userID, "star message")
		return
	}
	respondJSON(w, http.StatusOK, StarRequest{IsStarred: starred})
}

// MarkAsRead handles POST /api/v1/chat/read
func (h *ChatHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}
	if err := h.chatService.MarkAsRead(r.Context(), pairID); err != nil {
		respondServiceError(w, err, userID, "mark chat read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cleanup handles POST /api/v1/chat/cleanup
func (h *ChatHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	userID, pairID, ok := h.pairFor(w, r)
	if !ok {
		return
	}
	deleted, err := h.chatService.CleanupExpiredMessages(r.Context(), pairID)
	if err != nil {
		respondServiceError(w, err, userID, "clean up messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *ChatHandler) notifyPartner(ctx context.Context, userID, fromName string, msg *models.ChatMessage) {
	if !h.pushService.Enabled() {
		return
	}
	partnerID, err := h.pairingService.PartnerID(ctx, userID)
	if err != nil {
		return
	}

	body := msg.Type.DefaultEmoji()
	if msg.Text != nil {
		body = *msg.Text
	} else if msg.Emoji != nil {
		body = *msg.Emoji
	}
	go h.pushService.NotifyUser(context.WithoutCancel(ctx), partnerID, fromName, body)
}
