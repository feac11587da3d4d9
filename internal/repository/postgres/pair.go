package postgres

import (
	"context"
	"errors"

	"mdsync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatRepository handles database operations for pair-scoped chat resources
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// GetStatus retrieves the chat status of a pair
func (r *ChatRepository) GetStatus(ctx context.Context, pairID string) (*models.ChatStatus, error) {
	query := `SELECT enabled, last_opened FROM chat_status WHERE pair_id = $1`
	status := models.ChatStatus{PairID: pairID}
	err := r.db.QueryRow(ctx, query, pairID).Scan(&status.Enabled, &status.LastOpened)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &status, nil
		}
		return nil, models.NewStorageError("failed to get chat status", err)
	}
	return &status, nil
}

// SetStatus writes the chat status of a pair. A nil LastOpened keeps the
// stored value.
func (r *ChatRepository) SetStatus(ctx context.Context, status *models.ChatStatus) error {
	query := `
		INSERT INTO chat_status (pair_id, enabled, last_opened)
		VALUES ($1, $2, $3)
		ON CONFLICT (pair_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
			last_opened = COALESCE(EXCLUDED.last_opened, chat_status.last_opened)
	`
	if _, err := r.db.Exec(ctx, query, status.PairID, status.Enabled, status.LastOpened); err != nil {
		return models.NewStorageError("failed to set chat status", err)
	}
	return nil
}

// GetNotification retrieves the unread state of a pair's chat
func (r *ChatRepository) GetNotification(ctx context.Context, pairID string) (*models.ChatNotification, error) {
	query := `
		SELECT has_unread, last_sender_id, last_sender_name, last_updated
		FROM chat_notifications
		WHERE pair_id = $1
	`
	n := models.ChatNotification{PairID: pairID}
	err := r.db.QueryRow(ctx, query, pairID).Scan(
		&n.HasUnread, &n.LastSenderID, &n.LastSenderName, &n.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &n, nil
		}
		return nil, models.NewStorageError("failed to get chat notification", err)
	}
	return &n, nil
}

// MergeNotification upserts the notification of a pair
func (r *ChatRepository) MergeNotification(ctx context.Context, n *models.ChatNotification) error {
	query := `
		INSERT INTO chat_notifications (pair_id, has_unread, last_sender_id, last_sender_name, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pair_id) DO UPDATE
		SET has_unread = EXCLUDED.has_unread,
			last_sender_id = EXCLUDED.last_sender_id,
			last_sender_name = EXCLUDED.last_sender_name,
			last_updated = COALESCE(EXCLUDED.last_updated, chat_notifications.last_updated)
	`
	_, err := r.db.Exec(ctx, query, n.PairID, n.HasUnread, n.LastSenderID, n.LastSenderName, n.LastUpdated)
	if err != nil {
		return models.NewStorageError("failed to update chat notification", err)
	}
	return nil
}

// ClearUnread marks a pair's chat as read
func (r *ChatRepository) ClearUnread(ctx context.Context, pairID string) error {
	_, err := r.db.Exec(ctx, `UPDATE chat_notifications SET has_unread = FALSE WHERE pair_id = $1`, pairID)
	if err != nil {
		return models.NewStorageError("failed to mark chat as read", err)
	}
	return nil
}
