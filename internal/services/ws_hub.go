package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage represents a WebSocket frame in either direction
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Online  *bool       `json:"online,omitempty"`
}

// WSConn is one client socket. Writes are serialized so watchers on
// different goroutines can share it.
type WSConn struct {
	UserID string

	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWSConn wraps an upgraded connection
func NewWSConn(userID string, conn *websocket.Conn) *WSConn {
	return &WSConn{UserID: userID, conn: conn}
}

// Send writes one JSON frame
func (c *WSConn) Send(message WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close closes the underlying socket
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// WSHub tracks the live connection of each user
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*WSConn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*WSConn),
	}
}

// Register makes conn the user's connection, closing the one it replaces
func (h *WSHub) Register(conn *WSConn) {
	h.mu.Lock()
	prev := h.connections[conn.UserID]
	h.connections[conn.UserID] = conn
	h.mu.Unlock()

	if prev != nil && prev != conn {
		prev.Close()
		log.Info().Str("user_id", conn.UserID).Msg("WebSocket connection replaced")
		return
	}
	log.Info().Str("user_id", conn.UserID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the user's current connection
func (h *WSHub) Unregister(conn *WSConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[conn.UserID]
	if !exists || current != conn {
		return false
	}
	delete(h.connections, conn.UserID)
	log.Info().Str("user_id", conn.UserID).Msg("WebSocket connection unregistered")
	return true
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}
	return conn.Send(message)
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// NotifyPartnerStatus tells partnerID whether their partner is connected
func (h *WSHub) NotifyPartnerStatus(partnerID string, online bool) {
	if partnerID == "" || !h.IsOnline(partnerID) {
		return
	}

	message := WSMessage{
		Type:   "partner_status",
		Online: &online,
	}
	if err := h.SendToUser(partnerID, message); err != nil {
		log.Error().
			Err(err).
			Str("user_id", partnerID).
			Msg("Failed to notify partner status")
	}
}

// CloseAll closes every connection, used on shutdown
func (h *WSHub) CloseAll() {
	h.mu.Lock()
	conns := h.connections
	h.connections = make(map[string]*WSConn)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
