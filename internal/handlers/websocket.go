package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"mdsync-backend/internal/models"
	"mdsync-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket channels a client can subscribe to
const (
	ChannelPairing          = "pairing"
	ChannelPartnerMood      = "partner_mood"
	ChannelReaction         = "reaction"
	ChannelChatStatus       = "chat_status"
	ChannelChatNotification = "chat_notification"
	ChannelMessages         = "messages"
)

// pairScoped channels follow the caller's current partner
var pairScoped = map[string]bool{
	ChannelPartnerMood:      true,
	ChannelChatStatus:       true,
	ChannelChatNotification: true,
	ChannelMessages:         true,
}

// pairingWatchKey is the session's own pairing watcher, always installed
const pairingWatchKey = "_pairing"

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub             *services.WSHub
	userService     *services.UserService
	pairingService  *services.PairingService
	moodService     *services.MoodService
	reactionService *services.ReactionService
	chatService     *services.ChatService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	pairingService *services.PairingService,
	moodService *services.MoodService,
	reactionService *services.ReactionService,
	chatService *services.ChatService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:             hub,
		userService:     userService,
		pairingService:  pairingService,
		moodService:     moodService,
		reactionService: reactionService,
		chatService:     chatService,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	conn := services.NewWSConn(userID, raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &wsSession{
		h:         h,
		ctx:       ctx,
		conn:      conn,
		listeners: services.NewListeners(),
		wanted:    make(map[string]bool),
	}

	status, err := h.pairingService.GetPairingStatus(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load pairing status")
		return
	}
	if status.IsPaired() {
		s.partnerID = *status.PairedWith
		s.pairID = status.PairID
	}

	h.hub.Register(conn)
	defer func() {
		s.listeners.StopAll()
		if h.hub.Unregister(conn) {
			h.hub.NotifyPartnerStatus(s.currentPartner(), false)
		}
	}()

	if err := s.watchPairing(); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to watch pairing")
		return
	}

	if s.partnerID != "" {
		h.hub.NotifyPartnerStatus(s.partnerID, true)
		online := h.hub.IsOnline(s.partnerID)
		s.send(services.WSMessage{Type: "partner_status", Online: &online})
	}

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			s.sendError("", "Invalid message format", "invalid_input")
			continue
		}

		s.handleMessage(msg)
	}
}

// wsSession is the state of one connection. mu guards the binding state. Only
// the pairing watcher's callback takes mu, and that watcher is stopped only
// after the read loop has exited.
type wsSession struct {
	h         *WebSocketHandler
	ctx       context.Context
	conn      *services.WSConn
	listeners *services.Listeners

	mu          sync.Mutex
	wanted      map[string]bool
	partnerID   string
	pairID      string
	sendPairing bool

	dedupMu sync.Mutex
	deduper services.ReactionDeduper
}

func (s *wsSession) userID() string {
	return s.conn.UserID
}

func (s *wsSession) currentPartner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partnerID
}

func (s *wsSession) handleMessage(msg services.WSMessage) {
	switch msg.Type {
	case "subscribe":
		s.subscribe(msg.Channel)
	case "unsubscribe":
		s.unsubscribe(msg.Channel)
	case "ping":
		s.send(services.WSMessage{Type: "pong"})
	default:
		s.sendError("", "Unknown message type", "invalid_input")
	}
}

func (s *wsSession) subscribe(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case channel == ChannelPairing:
		s.sendPairing = true
		status, err := s.h.pairingService.GetPairingStatus(s.ctx, s.userID())
		s.deliver(ChannelPairing, status, err)
	case channel == ChannelReaction:
		s.wanted[channel] = true
		s.bind(channel)
	case pairScoped[channel]:
		s.wanted[channel] = true
		if s.pairID == "" {
			s.sendError(channel, models.ErrNotPaired.Message, models.ErrNotPaired.Code)
			return
		}
		s.bind(channel)
	default:
		s.sendError(channel, "Unknown channel", "invalid_input")
	}
}

func (s *wsSession) unsubscribe(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channel == ChannelPairing {
		s.sendPairing = false
		return
	}
	delete(s.wanted, channel)
	s.listeners.Stop(channel)
}

// bind installs the watcher for channel against the current pair. Callers
// hold s.mu.
func (s *wsSession) bind(channel string) {
	var (
		w   *services.Watcher
		err error
	)
	userID := s.userID()
	pairID := s.pairID

	switch channel {
	case ChannelReaction:
		w, err = s.h.reactionService.WatchLatestReaction(s.ctx, userID, func(r *models.Reaction, err error) {
			if err == nil && !s.freshReaction(r) {
				return
			}
			s.deliver(channel, r, err)
		})
	case ChannelPartnerMood:
		w, err = s.h.moodService.WatchPartnerMood(s.ctx, userID, func(m *models.PartnerMood, err error) {
			s.deliver(channel, m, err)
		})
	case ChannelChatStatus:
		w, err = s.h.chatService.WatchStatus(s.ctx, pairID, func(st *models.ChatStatus, err error) {
			s.deliver(channel, st, err)
		})
	case ChannelChatNotification:
		w, err = s.h.chatService.WatchNotification(s.ctx, pairID, func(n *models.ChatNotification, err error) {
			s.deliver(channel, n, err)
		})
	case ChannelMessages:
		w, err = s.h.chatService.WatchMessages(s.ctx, pairID, func(msgs []*models.ChatMessage, err error) {
			s.deliver(channel, msgs, err)
		})
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("channel", channel).Msg("Failed to subscribe")
		s.sendError(channel, "Failed to subscribe", "internal")
		return
	}
	s.listeners.Set(channel, w)
}

// watchPairing installs the session's pairing watcher. A partner change
// rebinds every pair-scoped channel, or stops them after an unpair.
func (s *wsSession) watchPairing() error {
	w, err := s.h.pairingService.WatchPairing(s.ctx, s.userID(), func(status *models.PairingStatus, err error) {
		if err != nil {
			s.sendError(ChannelPairing, "Failed to load pairing", "storage")
			return
		}
		s.onPairing(status)
	})
	if err != nil {
		return err
	}
	s.listeners.Set(pairingWatchKey, w)
	return nil
}

func (s *wsSession) onPairing(status *models.PairingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendPairing {
		s.deliver(ChannelPairing, status, nil)
	}

	partnerID := ""
	if status.IsPaired() {
		partnerID = *status.PairedWith
	}
	if partnerID == s.partnerID {
		return
	}

	log.Debug().
		Str("user_id", s.userID()).
		Str("partner_id", partnerID).
		Msg("Rebinding pair channels")

	s.partnerID = partnerID
	s.pairID = status.PairID

	for channel := range pairScoped {
		if !s.wanted[channel] {
			continue
		}
		if s.pairID == "" {
			s.listeners.Stop(channel)
			s.sendError(channel, models.ErrNotPaired.Message, models.ErrNotPaired.Code)
			continue
		}
		s.bind(channel)
	}
}

func (s *wsSession) freshReaction(r *models.Reaction) bool {
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()
	return s.deduper.Fresh(r)
}

func (s *wsSession) deliver(channel string, data interface{}, err error) {
	if err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			s.sendError(channel, ve.Message, ve.Code)
			return
		}
		log.Error().Err(err).Str("user_id", s.userID()).Str("channel", channel).Msg("Watch failed")
		s.sendError(channel, "Failed to load "+channel, "storage")
		return
	}
	s.send(services.WSMessage{Type: "snapshot", Channel: channel, Data: data})
}

func (s *wsSession) send(msg services.WSMessage) {
	if err := s.conn.Send(msg); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID()).Str("type", msg.Type).Msg("Failed to write WebSocket frame")
	}
}

func (s *wsSession) sendError(channel, message, code string) {
	s.send(services.WSMessage{Type: "error", Channel: channel, Message: message, Code: code})
}
