package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepInterval    = time.Hour
	defaultSweepConcurrency = 4
)

// Sweeper periodically deletes expired chat messages of every pair
type Sweeper struct {
	chat        *ChatService
	interval    time.Duration
	concurrency int
}

// NewSweeper creates a sweeper. Non-positive values select the defaults.
func NewSweeper(chat *ChatService, interval time.Duration, concurrency int) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	return &Sweeper{
		chat:        chat,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run sweeps once per interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("Expired message sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Expired message sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Expired message sweep failed")
			}
		}
	}
}

// Sweep cleans up every pair once and returns the number of deleted
// messages. A failing pair is logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	pairIDs, err := s.chat.PairsWithMessages(ctx)
	if err != nil {
		return 0, err
	}

	deleted := make([]int, len(pairIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, pairID := range pairIDs {
		i, pairID := i, pairID
		g.Go(func() error {
			n, err := s.chat.CleanupExpiredMessages(gctx, pairID)
			if err != nil {
				log.Warn().Err(err).Str("pair_id", pairID).Msg("Failed to clean up expired messages")
				return nil
			}
			deleted[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		log.Info().Int("deleted", total).Int("pairs", len(pairIDs)).Msg("Expired message sweep finished")
	}
	return total, nil
}
