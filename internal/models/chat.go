package models

import (
	"strings"
	"time"
)

// MessageTTL is how long a cooldown chat message stays visible
const MessageTTL = 7 * 24 * time.Hour

// MessageType classifies a cooldown chat message
type MessageType string

const (
	MessageTypeMessage MessageType = "message"
	MessageTypeApology MessageType = "apology"
	MessageTypeHug     MessageType = "hug"
	MessageTypeReject  MessageType = "reject"
	MessageTypeNeutral MessageType = "neutral"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeMessage, MessageTypeApology, MessageTypeHug, MessageTypeReject, MessageTypeNeutral:
		return true
	}
	return false
}

// DefaultEmoji is the emoji sent for a quick response of this type
func (t MessageType) DefaultEmoji() string {
	switch t {
	case MessageTypeApology:
		return "🙏"
	case MessageTypeHug:
		return "🫂"
	case MessageTypeReject:
		return "❌"
	case MessageTypeNeutral:
		return "😐"
	default:
		return "💬"
	}
}

// Repliable reports whether messages of this type accept a reply
func (t MessageType) Repliable() bool {
	switch t {
	case MessageTypeApology, MessageTypeHug, MessageTypeReject:
		return true
	}
	return false
}

// ReplyStatus is the acknowledgement given to a repliable message
type ReplyStatus string

const (
	ReplyAccepted ReplyStatus = "accepted"
	ReplyDeferred ReplyStatus = "deferred"
)

// Valid reports whether s is a known reply status
func (s ReplyStatus) Valid() bool {
	return s == ReplyAccepted || s == ReplyDeferred
}

// Emoji is the badge shown next to a replied message
func (s ReplyStatus) Emoji() string {
	if s == ReplyDeferred {
		return "🕓"
	}
	return "✅"
}

// ChatMessage is a single message in a pair's cooldown chat
type ChatMessage struct {
	ID            string       `json:"id"`
	PairID        string       `json:"pair_id"`
	FromUserID    string       `json:"from_user_id"`
	FromName      string       `json:"from_name"`
	Emoji         *string      `json:"emoji,omitempty"`
	Text          *string      `json:"text,omitempty"`
	Type          MessageType  `json:"type"`
	CreatedAt     time.Time    `json:"created_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
	ReplyStatus   *ReplyStatus `json:"reply_status,omitempty"`
	ReplyByUserID *string      `json:"reply_by_user_id,omitempty"`
	IsStarred     *bool        `json:"is_starred,omitempty"`
}

// IsExpiredAt reports whether the message has expired at now
func (m *ChatMessage) IsExpiredAt(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// IsExpired reports whether the message has expired
func (m *ChatMessage) IsExpired() bool {
	return m.IsExpiredAt(time.Now())
}

// TimeRemaining is the time left before expiry, never negative
func (m *ChatMessage) TimeRemaining(now time.Time) time.Duration {
	if d := m.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsReplied reports whether a reply has been recorded
func (m *ChatMessage) IsReplied() bool {
	return m.ReplyStatus != nil && m.ReplyByUserID != nil
}

// CanBeReplied reports whether the message still accepts a reply
func (m *ChatMessage) CanBeReplied() bool {
	return m.Type.Repliable() && m.ReplyStatus == nil
}

// Starred returns the star flag, treating absent as false
func (m *ChatMessage) Starred() bool {
	return m.IsStarred != nil && *m.IsStarred
}

// Validate checks a message before it is written
func (m *ChatMessage) Validate() error {
	if !m.Type.Valid() {
		return ErrInvalidMessageType
	}
	if trimmedEmpty(m.Text) && trimmedEmpty(m.Emoji) {
		return ErrEmptyMessage
	}
	if m.FromUserID == "" || m.PairID == "" {
		return ErrInvalidInput
	}
	return nil
}

func trimmedEmpty(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// ChatStatus is the per-pair cooldown chat switch. An absent status is
// equivalent to Enabled == false.
type ChatStatus struct {
	PairID     string     `json:"pair_id"`
	Enabled    bool       `json:"enabled"`
	LastOpened *time.Time `json:"last_opened,omitempty"`
}

// ChatState is the position of a pair in the cooldown chat state machine
type ChatState string

const (
	ChatStateUnpaired ChatState = "unpaired"
	ChatStateDisabled ChatState = "disabled"
	ChatStateEnabled  ChatState = "enabled"
)

// State maps the status document onto the chat state machine
func (s *ChatStatus) State() ChatState {
	if s == nil || !s.Enabled {
		return ChatStateDisabled
	}
	return ChatStateEnabled
}

// ChatNotification tracks unread cooldown chat activity for a pair
type ChatNotification struct {
	PairID         string     `json:"pair_id"`
	HasUnread      bool       `json:"has_unread"`
	LastSenderID   string     `json:"last_sender_id,omitempty"`
	LastSenderName string     `json:"last_sender_name,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
}

// UnreadFor reports whether userID has unread messages from their partner
func (n *ChatNotification) UnreadFor(userID string) bool {
	return n != nil && n.HasUnread && n.LastSenderID != userID
}
