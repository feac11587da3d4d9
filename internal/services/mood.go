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

// MoodService records moods and mirrors the partner's mood
type MoodService struct {
	userRepo repository.UserRepository
	moodRepo repository.MoodRepository
	pairing  *PairingService
	broker   events.Broker
	now      func() time.Time
}

// NewMoodService creates a new mood service
func NewMoodService(
	userRepo repository.UserRepository,
	moodRepo repository.MoodRepository,
	pairing *PairingService,
	broker events.Broker,
) *MoodService {
	return &MoodService{
		userRepo: userRepo,
		moodRepo: moodRepo,
		pairing:  pairing,
		broker:   broker,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *MoodService) SetClock(now func() time.Time) {
	s.now = now
}

// SetMood sets selfID's current mood and appends it to their history. A
// failed history append is logged and does not fail the update.
func (s *MoodService) SetMood(ctx context.Context, selfID, emoji string) (*models.Mood, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, models.ErrEmptyEmoji
	}
	now := s.now()

	err := s.userRepo.SetMood(ctx, selfID, emoji, now)
	if errors.Is(err, models.ErrNotFound) {
		err = s.userRepo.UpsertMood(ctx, selfID, emoji, now)
	}
	if err != nil {
		return nil, err
	}

	entry := &models.MoodHistoryEntry{
		ID:        uuid.New().String(),
		UserID:    selfID,
		Mood:      emoji,
		Timestamp: now,
	}
	if err := s.moodRepo.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("user_id", selfID).Msg("Failed to append mood history")
	}

	publish(ctx, s.broker, events.UserTopic(selfID))

	return &models.Mood{UserID: selfID, Emoji: emoji, LastUpdated: &now}, nil
}

// GetMood returns a user's current mood
func (s *MoodService) GetMood(ctx context.Context, userID string) (*models.Mood, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &models.Mood{UserID: user.ID, Emoji: user.Mood, LastUpdated: user.MoodLastUpdated}, nil
}

// GetMoodHistory returns a user's past moods, newest first
func (s *MoodService) GetMoodHistory(ctx context.Context, userID string, limit int) ([]*models.MoodHistoryEntry, error) {
	entries, err := s.moodRepo.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.MoodHistoryEntry{}
	}
	return entries, nil
}

// GetPartnerMood returns the mood of selfID's partner, or a result with
// HasPartner false when selfID is unpaired
func (s *MoodService) GetPartnerMood(ctx context.Context, selfID string) (*models.PartnerMood, error) {
	status, err := s.pairing.GetPairingStatus(ctx, selfID)
	if err != nil {
		return nil, err
	}
	if !status.IsPaired() {
		return &models.PartnerMood{HasPartner: false}, nil
	}

	partnerID := *status.PairedWith
	result := &models.PartnerMood{
		HasPartner:  true,
		PartnerID:   partnerID,
		PartnerName: status.PartnerName,
	}
	mood, err := s.GetMood(ctx, partnerID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return result, nil
		}
		return nil, err
	}
	result.Mood = mood
	return result, nil
}

// WatchPartnerMood streams the partner's mood. It follows the partner as of
// subscription time; callers re-subscribe when the pairing changes.
func (s *MoodService) WatchPartnerMood(ctx context.Context, selfID string, handler func(*models.PartnerMood, error)) (*Watcher, error) {
	partnerID, err := s.pairing.PartnerID(ctx, selfID)
	if err != nil {
		return nil, err
	}
	return Watch(ctx, s.broker, events.UserTopic(partnerID), func(ctx context.Context) (*models.PartnerMood, error) {
		return s.GetPartnerMood(ctx, selfID)
	}, handler)
}
