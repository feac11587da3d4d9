package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes bundles the handlers served by the API
type Routes struct {
	Auth      func(http.Handler) http.Handler
	Users     *UserHandler
	Pairing   *PairHandler
	Mood      *MoodHandler
	Reactions *ReactionHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

// NewRouter builds the API routes
func NewRouter(h Routes) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", h.Users.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.Auth)

			r.Get("/me", h.Users.GetMe)
			r.Put("/me/push-token", h.Users.UpdatePushToken)

			r.Get("/pairing", h.Pairing.GetPairing)
			r.Post("/pairing", h.Pairing.CreatePair)
			r.Delete("/pairing", h.Pairing.DeletePair)

			r.Get("/mood", h.Mood.GetMood)
			r.Put("/mood", h.Mood.SetMood)
			r.Get("/mood/history", h.Mood.GetHistory)
			r.Get("/partner/mood", h.Mood.GetPartnerMood)

			r.Post("/reactions", h.Reactions.SendReaction)
			r.Get("/reactions/latest", h.Reactions.GetLatestReaction)

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", h.Chat.GetChat)
				r.Post("/enable", h.Chat.EnableChat)
				r.Post("/disable", h.Chat.DisableChat)
				r.Get("/messages", h.Chat.ListMessages)
				r.Post("/messages", h.Chat.SendMessage)
				r.Post("/quick", h.Chat.SendQuickResponse)
				r.Post("/messages/{message_id}/reply", h.Chat.ReplyToMessage)
				r.Post("/messages/{message_id}/star", h.Chat.ToggleStar)
				r.Post("/read", h.Chat.MarkAsRead)
				r.Post("/cleanup", h.Chat.Cleanup)
			})
		})
	})

	// WebSocket route
	if h.WebSocket != nil {
		r.Get("/ws", h.WebSocket.HandleWebSocket)
	}

	return r
}
