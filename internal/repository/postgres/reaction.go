package postgres

import (
	"context"
	"errors"

	"mdsync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReactionRepository handles database operations for reaction inboxes
type ReactionRepository struct {
	db *pgxpool.Pool
}

// NewReactionRepository creates a new reaction repository
func NewReactionRepository(db *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Create stores a reaction in the recipient's inbox
func (r *ReactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	query := `
		INSERT INTO reactions (id, to_user_id, from_user_id, from_name, emoji, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		reaction.ID, reaction.ToUserID, reaction.FromUserID, reaction.FromName,
		reaction.Emoji, reaction.Timestamp,
	)
	if err != nil {
		return models.NewStorageError("failed to create reaction", err)
	}
	return nil
}

// Latest retrieves the newest reaction addressed to a user
func (r *ReactionRepository) Latest(ctx context.Context, userID string) (*models.Reaction, error) {
	query := `
		SELECT id, to_user_id, from_user_id, from_name, emoji, sent_at
		FROM reactions
		WHERE to_user_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT 1
	`
	var reaction models.Reaction
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&reaction.ID, &reaction.ToUserID, &reaction.FromUserID, &reaction.FromName,
		&reaction.Emoji, &reaction.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewStorageError("failed to get latest reaction", err)
	}
	return &reaction, nil
}
