package services

import (
	"context"
	"errors"
	"fmt"

	"mdsync-backend/internal/events"
	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// PairingService maintains the symmetric partner relation between users
type PairingService struct {
	userRepo repository.UserRepository
	broker   events.Broker
}

// NewPairingService creates a new pairing service
func NewPairingService(userRepo repository.UserRepository, broker events.Broker) *PairingService {
	return &PairingService{
		userRepo: userRepo,
		broker:   broker,
	}
}

// GetPairingStatus reports who selfID is paired with. A user without a
// record is reported as unpaired.
func (s *PairingService) GetPairingStatus(ctx context.Context, selfID string) (*models.PairingStatus, error) {
	self, err := s.userRepo.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.PairingStatus{}, nil
		}
		return nil, err
	}
	if !self.IsPaired() {
		return &models.PairingStatus{}, nil
	}

	partnerID := self.PartnerID()
	status := &models.PairingStatus{
		PairedWith:  &partnerID,
		PartnerName: unknownPartner,
		PairID:      models.PairID(selfID, partnerID),
	}
	partner, err := s.userRepo.GetByID(ctx, partnerID)
	switch {
	case err == nil:
		status.PartnerName = partner.DisplayName(unknownPartner)
	case !errors.Is(err, models.ErrNotFound):
		log.Warn().Err(err).Str("user_id", selfID).Msg("Failed to load partner name")
	}
	return status, nil
}

// PartnerID returns selfID's partner or models.ErrNotPaired
func (s *PairingService) PartnerID(ctx context.Context, selfID string) (string, error) {
	self, err := s.userRepo.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotPaired
		}
		return "", err
	}
	if !self.IsPaired() {
		return "", models.ErrNotPaired
	}
	return self.PartnerID(), nil
}

// PairIDFor returns the pair id of selfID's current pairing
func (s *PairingService) PairIDFor(ctx context.Context, selfID string) (string, error) {
	partnerID, err := s.PartnerID(ctx, selfID)
	if err != nil {
		return "", err
	}
	return models.PairID(selfID, partnerID), nil
}

// RequestPairing pairs selfID with candidateID and returns the partner id.
// Repeating a successful request is a no-op that succeeds again.
func (s *PairingService) RequestPairing(ctx context.Context, selfID, candidateID string) (string, error) {
	candidateID = models.NormalizeUserID(candidateID)
	if candidateID == "" {
		return "", models.ErrEmptyCandidate
	}
	if candidateID == selfID {
		return "", models.ErrSelfPairing
	}

	candidate, err := s.userRepo.GetByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrCandidateNotFound
		}
		return "", fmt.Errorf("failed to load candidate: %w", err)
	}
	if p := candidate.PartnerID(); p != "" && p != selfID {
		return "", models.ErrCandidateAlreadyPaired
	}

	// The store re-checks both rows inside the batch, so a concurrent pairing
	// between the read above and this write cannot produce a one-sided pair.
	if err := s.userRepo.Pair(ctx, selfID, candidateID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrUserNotFound
		}
		return "", err
	}

	publish(ctx, s.broker, events.UserTopic(selfID), events.UserTopic(candidateID))

	log.Info().
		Str("user_id", selfID).
		Str("partner_id", candidateID).
		Msg("Users paired")

	return candidateID, nil
}

// Unpair dissolves selfID's pairing on both sides. Chat resources of the old
// pair are left in place.
func (s *PairingService) Unpair(ctx context.Context, selfID string) error {
	self, err := s.userRepo.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotPaired
		}
		return err
	}
	if !self.IsPaired() {
		return models.ErrNotPaired
	}
	partnerID := self.PartnerID()

	if err := s.userRepo.Unpair(ctx, selfID, partnerID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotPaired
		}
		return err
	}

	publish(ctx, s.broker, events.UserTopic(selfID), events.UserTopic(partnerID))

	log.Info().
		Str("user_id", selfID).
		Str("partner_id", partnerID).
		Msg("Users unpaired")

	return nil
}

// WatchPairing streams selfID's pairing status
func (s *PairingService) WatchPairing(ctx context.Context, selfID string, handler func(*models.PairingStatus, error)) (*Watcher, error) {
	return Watch(ctx, s.broker, events.UserTopic(selfID), func(ctx context.Context) (*models.PairingStatus, error) {
		return s.GetPairingStatus(ctx, selfID)
	}, handler)
}
