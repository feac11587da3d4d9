package postgres

import (
	"context"
	"errors"
	"time"

	"mdsync-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, pair_id, from_user_id, from_name, emoji, text, type,
	created_at, expires_at, reply_status, reply_by_user_id, is_starred`

// CreateMessage stores a new chat message
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var replyStatus *string
	if msg.ReplyStatus != nil {
		s := string(*msg.ReplyStatus)
		replyStatus = &s
	}
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.PairID, msg.FromUserID, msg.FromName, msg.Emoji, msg.Text, string(msg.Type),
		msg.CreatedAt, msg.ExpiresAt, replyStatus, msg.ReplyByUserID, msg.IsStarred,
	)
	if err != nil {
		return models.NewStorageError("failed to create message", err)
	}
	return nil
}

// GetMessage retrieves a single message of a pair
func (r *ChatRepository) GetMessage(ctx context.Context, pairID, messageID string) (*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE pair_id = $1 AND id = $2`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, pairID, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewStorageError("failed to get message", err)
	}
	return msg, nil
}

// ListMessages retrieves every message of a pair, oldest first
func (r *ChatRepository) ListMessages(ctx context.Context, pairID string) ([]*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE pair_id = $1 ORDER BY created_at ASC, id ASC`
	return r.queryMessages(ctx, "failed to list messages", query, pairID)
}

// SetReply records a reply only if the message has none yet
func (r *ChatRepository) SetReply(ctx context.Context, pairID, messageID string, status models.ReplyStatus, byUserID string) (bool, error) {
	query := `
		UPDATE chat_messages
		SET reply_status = $1, reply_by_user_id = $2
		WHERE pair_id = $3 AND id = $4 AND reply_status IS NULL
	`
	result, err := r.db.Exec(ctx, query, string(status), byUserID, pairID, messageID)
	if err != nil {
		return false, models.NewStorageError("failed to reply to message", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetStarred sets the star flag of a message
func (r *ChatRepository) SetStarred(ctx context.Context, pairID, messageID string, starred bool) error {
	query := `UPDATE chat_messages SET is_starred = $1 WHERE pair_id = $2 AND id = $3`
	result, err := r.db.Exec(ctx, query, starred, pairID, messageID)
	if err != nil {
		return models.NewStorageError("failed to star message", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListExpired retrieves the messages of a pair that expired before a time
func (r *ChatRepository) ListExpired(ctx context.Context, pairID string, before time.Time) ([]*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE pair_id = $1 AND expires_at < $2 ORDER BY created_at ASC, id ASC`
	return r.queryMessages(ctx, "failed to list expired messages", query, pairID, before)
}

// DeleteMessages deletes messages of a pair in one statement
func (r *ChatRepository) DeleteMessages(ctx context.Context, pairID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE pair_id = $1 AND id = ANY($2)`, pairID, ids)
	if err != nil {
		return 0, models.NewStorageError("failed to delete messages", err)
	}
	return int(result.RowsAffected()), nil
}

// ListPairIDs retrieves every pair id that has messages
func (r *ChatRepository) ListPairIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT pair_id FROM chat_messages ORDER BY pair_id`)
	if err != nil {
		return nil, models.NewStorageError("failed to list pairs", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, models.NewStorageError("failed to scan pair id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("error iterating pairs", err)
	}
	return ids, nil
}

func (r *ChatRepository) queryMessages(ctx context.Context, op, query string, args ...any) ([]*models.ChatMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, models.NewStorageError(op, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError(op, err)
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var (
		msg         models.ChatMessage
		msgType     string
		replyStatus *string
	)
	err := row.Scan(
		&msg.ID, &msg.PairID, &msg.FromUserID, &msg.FromName, &msg.Emoji, &msg.Text, &msgType,
		&msg.CreatedAt, &msg.ExpiresAt, &replyStatus, &msg.ReplyByUserID, &msg.IsStarred,
	)
	if err != nil {
		return nil, err
	}
	msg.Type = models.MessageType(msgType)
	if replyStatus != nil {
		s := models.ReplyStatus(*replyStatus)
		msg.ReplyStatus = &s
	}
	return &msg, nil
}
