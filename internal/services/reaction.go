package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"mdsync-backend/internal/events"
	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReactionService delivers emoji reactions into a recipient's inbox
type ReactionService struct {
	reactionRepo repository.ReactionRepository
	broker       events.Broker
	now          func() time.Time
}

// NewReactionService creates a new reaction service
func NewReactionService(reactionRepo repository.ReactionRepository, broker events.Broker) *ReactionService {
	return &ReactionService{
		reactionRepo: reactionRepo,
		broker:       broker,
		now:          time.Now,
	}
}

// SetClock replaces the time source
func (s *ReactionService) SetClock(now func() time.Time) {
	s.now = now
}

// SendReaction writes one reaction into toUserID's inbox. Every call adds a
// distinct document, so concurrent sends never overwrite each other.
func (s *ReactionService) SendReaction(ctx context.Context, fromID, fromName, toUserID, emoji string) (*models.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, models.ErrEmptyEmoji
	}
	if fromID == "" || toUserID == "" {
		return nil, models.ErrInvalidInput
	}

	reaction := &models.Reaction{
		ID:         uuid.New().String(),
		ToUserID:   toUserID,
		FromUserID: fromID,
		FromName:   fromName,
		Emoji:      emoji,
		Timestamp:  s.now(),
	}
	if err := s.reactionRepo.Create(ctx, reaction); err != nil {
		return nil, err
	}

	publish(ctx, s.broker, events.ReactionsTopic(toUserID))

	log.Debug().
		Str("user_id", fromID).
		Str("to_user_id", toUserID).
		Str("reaction_id", reaction.ID).
		Msg("Reaction sent")

	return reaction, nil
}

// LatestReaction returns the newest reaction in userID's inbox, or nil if the
// inbox is empty
func (s *ReactionService) LatestReaction(ctx context.Context, userID string) (*models.Reaction, error) {
	reaction, err := s.reactionRepo.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return reaction, nil
}

// WatchLatestReaction streams the newest reaction in selfID's inbox. The same
// reaction may be delivered more than once; consumers dedupe by its ID.
func (s *ReactionService) WatchLatestReaction(ctx context.Context, selfID string, handler func(*models.Reaction, error)) (*Watcher, error) {
	return Watch(ctx, s.broker, events.ReactionsTopic(selfID), func(ctx context.Context) (*models.Reaction, error) {
		return s.LatestReaction(ctx, selfID)
	}, handler)
}

// ReactionDeduper passes each reaction id through once
type ReactionDeduper struct {
	lastID string
}

// Fresh reports whether r has not been seen before and records it
func (d *ReactionDeduper) Fresh(r *models.Reaction) bool {
	if r == nil || r.ID == "" || r.ID == d.lastID {
		return false
	}
	d.lastID = r.ID
	return true
}
