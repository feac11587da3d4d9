package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mdsync-backend/internal/events"
	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	deferredFollowUpText  = "I need a little more time. Let's talk later."
	deferredFollowUpEmoji = "🕓"
)

// ChatService runs the per-pair cooldown chat
type ChatService struct {
	chatRepo repository.ChatRepository
	users    *UserService
	broker   events.Broker
	archiver Archiver
	now      func() time.Time
}

// NewChatService creates a new chat service. archiver may be nil.
func NewChatService(chatRepo repository.ChatRepository, users *UserService, broker events.Broker, archiver Archiver) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		users:    users,
		broker:   broker,
		archiver: archiver,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *ChatService) SetClock(now func() time.Time) {
	s.now = now
}

// SendMessageInput describes a message to send
type SendMessageInput struct {
	PairID   string
	FromID   string
	FromName string
	Text     *string
	Emoji    *string
	Type     models.MessageType
}

// Status returns the chat status of a pair
func (s *ChatService) Status(ctx context.Context, pairID string) (*models.ChatStatus, error) {
	return s.chatRepo.GetStatus(ctx, pairID)
}

// Notification returns the unread state of a pair's chat
func (s *ChatService) Notification(ctx context.Context, pairID string) (*models.ChatNotification, error) {
	return s.chatRepo.GetNotification(ctx, pairID)
}

// EnableChat turns the cooldown chat on. Enabling twice has no further effect.
func (s *ChatService) EnableChat(ctx context.Context, pairID string) error {
	if pairID == "" {
		return models.ErrNotPaired
	}
	now := s.now()
	if err := s.chatRepo.SetStatus(ctx, &models.ChatStatus{PairID: pairID, Enabled: true, LastOpened: &now}); err != nil {
		return err
	}
	publish(ctx, s.broker, events.ChatStatusTopic(pairID), events.ChatMessagesTopic(pairID))
	log.Info().Str("pair_id", pairID).Msg("Cooldown chat enabled")
	return nil
}

// DisableChat turns the cooldown chat off. Live message views become empty.
func (s *ChatService) DisableChat(ctx context.Context, pairID string) error {
	if pairID == "" {
		return models.ErrNotPaired
	}
	if err := s.chatRepo.SetStatus(ctx, &models.ChatStatus{PairID: pairID, Enabled: false}); err != nil {
		return err
	}
	publish(ctx, s.broker, events.ChatStatusTopic(pairID), events.ChatMessagesTopic(pairID))
	log.Info().Str("pair_id", pairID).Msg("Cooldown chat disabled")
	return nil
}

func (s *ChatService) requireEnabled(ctx context.Context, pairID string) error {
	if pairID == "" {
		return models.ErrNotPaired
	}
	status, err := s.chatRepo.GetStatus(ctx, pairID)
	if err != nil {
		return err
	}
	if status.State() != models.ChatStateEnabled {
		return models.ErrChatNotEnabled
	}
	return nil
}

// SendMessage appends a message to the pair's chat and flags it unread for
// the partner. A failed notification update is logged and does not fail the
// send.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.ChatMessage, error) {
	if err := s.requireEnabled(ctx, in.PairID); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.MessageTypeMessage
	}

	now := s.now()
	msg := &models.ChatMessage{
		ID:         uuid.New().String(),
		PairID:     in.PairID,
		FromUserID: in.FromID,
		FromName:   in.FromName,
		Text:       trimOptional(in.Text),
		Emoji:      trimOptional(in.Emoji),
		Type:       in.Type,
		CreatedAt:  now,
		ExpiresAt:  now.Add(models.MessageTTL),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	publish(ctx, s.broker, events.ChatMessagesTopic(in.PairID))

	notification := &models.ChatNotification{
		PairID:         in.PairID,
		HasUnread:      true,
		LastSenderID:   in.FromID,
		LastSenderName: in.FromName,
		LastUpdated:    &now,
	}
	if err := s.chatRepo.MergeNotification(ctx, notification); err != nil {
		log.Warn().Err(err).
			Str("pair_id", in.PairID).
			Str("message_id", msg.ID).
			Msg("Failed to update chat notification")
	} else {
		publish(ctx, s.broker, events.ChatNotificationTopic(in.PairID))
	}

	log.Debug().
		Str("pair_id", in.PairID).
		Str("user_id", in.FromID).
		Str("message_id", msg.ID).
		Str("type", string(msg.Type)).
		Msg("Chat message sent")

	return msg, nil
}

// SendQuickResponse sends the canonical emoji of msgType with no text
func (s *ChatService) SendQuickResponse(ctx context.Context, pairID, fromID, fromName string, msgType models.MessageType) (*models.ChatMessage, error) {
	if !msgType.Valid() {
		return nil, models.ErrInvalidMessageType
	}
	emoji := msgType.DefaultEmoji()
	return s.SendMessage(ctx, SendMessageInput{
		PairID:   pairID,
		FromID:   fromID,
		FromName: fromName,
		Emoji:    &emoji,
		Type:     msgType,
	})
}

// ReplyToMessage records byUserID's reply on a repliable message. The first
// reply wins; later attempts fail with models.ErrAlreadyReplied. A deferred
// reply also sends a neutral follow-up message.
func (s *ChatService) ReplyToMessage(ctx context.Context, pairID, messageID string, status models.ReplyStatus, byUserID string) (*models.ChatMessage, error) {
	if !status.Valid() {
		return nil, models.ErrInvalidReplyStatus
	}
	if err := s.requireEnabled(ctx, pairID); err != nil {
		return nil, err
	}

	msg, err := s.getMessage(ctx, pairID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ReplyStatus != nil {
		return nil, models.ErrAlreadyReplied
	}
	if !msg.Type.Repliable() {
		return nil, models.ErrNotRepliable
	}

	applied, err := s.chatRepo.SetReply(ctx, pairID, messageID, status, byUserID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, models.ErrAlreadyReplied
	}
	publish(ctx, s.broker, events.ChatMessagesTopic(pairID))

	log.Info().
		Str("pair_id", pairID).
		Str("message_id", messageID).
		Str("user_id", byUserID).
		Str("reply_status", string(status)).
		Msg("Message replied")

	if status == models.ReplyDeferred {
		text := deferredFollowUpText
		emoji := deferredFollowUpEmoji
		_, err := s.SendMessage(ctx, SendMessageInput{
			PairID:   pairID,
			FromID:   byUserID,
			FromName: s.users.DisplayName(ctx, byUserID),
			Text:     &text,
			Emoji:    &emoji,
			Type:     models.MessageTypeNeutral,
		})
		if err != nil {
			log.Warn().Err(err).Str("pair_id", pairID).Msg("Failed to send deferred reply follow-up")
		}
	}

	return s.getMessage(ctx, pairID, messageID)
}

// ToggleStar sets the star flag to the opposite of currentIsStarred, the
// caller's last known value, and returns the new value. Two concurrent
// toggles may both write the same value.
func (s *ChatService) ToggleStar(ctx context.Context, pairID, messageID string, currentIsStarred bool) (bool, error) {
	starred := !currentIsStarred
	if err := s.chatRepo.SetStarred(ctx, pairID, messageID, starred); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, models.ErrMessageNotFound
		}
		return false, err
	}
	publish(ctx, s.broker, events.ChatMessagesTopic(pairID))
	return starred, nil
}

// MarkAsRead clears the unread flag of a pair's chat
func (s *ChatService) MarkAsRead(ctx context.Context, pairID string) error {
	if pairID == "" {
		return models.ErrNotPaired
	}
	if err := s.chatRepo.ClearUnread(ctx, pairID); err != nil {
		return err
	}
	publish(ctx, s.broker, events.ChatNotificationTopic(pairID))
	return nil
}

// ListMessages returns the pair's live messages, oldest first. Expired
// messages are left out, and a disabled chat shows no messages.
func (s *ChatService) ListMessages(ctx context.Context, pairID string) ([]*models.ChatMessage, error) {
	status, err := s.chatRepo.GetStatus(ctx, pairID)
	if err != nil {
		return nil, err
	}
	if !status.Enabled {
		return []*models.ChatMessage{}, nil
	}
	return s.liveMessages(ctx, pairID)
}

func (s *ChatService) liveMessages(ctx context.Context, pairID string) ([]*models.ChatMessage, error) {
	all, err := s.chatRepo.ListMessages(ctx, pairID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := make([]*models.ChatMessage, 0, len(all))
	for _, msg := range all {
		if !msg.IsExpiredAt(now) {
			live = append(live, msg)
		}
	}
	return live, nil
}

// WatchMessages streams the pair's live messages, oldest first
func (s *ChatService) WatchMessages(ctx context.Context, pairID string, handler func([]*models.ChatMessage, error)) (*Watcher, error) {
	return Watch(ctx, s.broker, events.ChatMessagesTopic(pairID), func(ctx context.Context) ([]*models.ChatMessage, error) {
		return s.ListMessages(ctx, pairID)
	}, handler)
}

// WatchStatus streams the pair's chat status
func (s *ChatService) WatchStatus(ctx context.Context, pairID string, handler func(*models.ChatStatus, error)) (*Watcher, error) {
	return Watch(ctx, s.broker, events.ChatStatusTopic(pairID), func(ctx context.Context) (*models.ChatStatus, error) {
		return s.chatRepo.GetStatus(ctx, pairID)
	}, handler)
}

// WatchNotification streams the pair's unread state
func (s *ChatService) WatchNotification(ctx context.Context, pairID string, handler func(*models.ChatNotification, error)) (*Watcher, error) {
	return Watch(ctx, s.broker, events.ChatNotificationTopic(pairID), func(ctx context.Context) (*models.ChatNotification, error) {
		return s.chatRepo.GetNotification(ctx, pairID)
	}, handler)
}

// CleanupExpiredMessages deletes the pair's expired messages in one batch and
// returns how many were removed. With an archiver configured the messages
// are archived first, and nothing is deleted if archiving fails.
func (s *ChatService) CleanupExpiredMessages(ctx context.Context, pairID string) (int, error) {
	expired, err := s.chatRepo.ListExpired(ctx, pairID, s.now())
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, pairID, expired); err != nil {
			return 0, models.NewStorageError("failed to archive expired messages", err)
		}
	}

	ids := make([]string, len(expired))
	for i, msg := range expired {
		ids[i] = msg.ID
	}
	deleted, err := s.chatRepo.DeleteMessages(ctx, pairID, ids)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		publish(ctx, s.broker, events.ChatMessagesTopic(pairID))
	}

	log.Info().
		Str("pair_id", pairID).
		Int("deleted", deleted).
		Msg("Expired messages cleaned up")

	return deleted, nil
}

// PairsWithMessages returns every pair id that has stored messages
func (s *ChatService) PairsWithMessages(ctx context.Context) ([]string, error) {
	return s.chatRepo.ListPairIDs(ctx)
}

func (s *ChatService) getMessage(ctx context.Context, pairID, messageID string) (*models.ChatMessage, error) {
	msg, err := s.chatRepo.GetMessage(ctx, pairID, messageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
