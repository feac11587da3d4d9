package postgres

import (
	"context"

	"mdsync-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MoodRepository handles database operations for mood history
type MoodRepository struct {
	db *pgxpool.Pool
}

// NewMoodRepository creates a new mood history repository
func NewMoodRepository(db *pgxpool.Pool) *MoodRepository {
	return &MoodRepository{db: db}
}

// Append records a mood history entry
func (r *MoodRepository) Append(ctx context.Context, entry *models.MoodHistoryEntry) error {
	query := `
		INSERT INTO mood_history (id, user_id, mood, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Exec(ctx, query, entry.ID, entry.UserID, entry.Mood, entry.Timestamp); err != nil {
		return models.NewStorageError("failed to append mood history", err)
	}
	return nil
}

// List returns a user's mood history, newest first
func (r *MoodRepository) List(ctx context.Context, userID string, limit int) ([]*models.MoodHistoryEntry, error) {
	query := `
		SELECT id, user_id, mood, recorded_at
		FROM mood_history
		WHERE user_id = $1
		ORDER BY recorded_at DESC, id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError("failed to get mood history", err)
	}
	defer rows.Close()

	var entries []*models.MoodHistoryEntry
	for rows.Next() {
		var e models.MoodHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Mood, &e.Timestamp); err != nil {
			return nil, models.NewStorageError("failed to scan mood history", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("error iterating mood history", err)
	}
	return entries, nil
}
