package postgres

import (
	"context"
	"errors"
	"time"

	"mdsync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, mood, mood_last_updated, paired_with, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.Email, user.Mood, user.MoodLastUpdated,
		user.PairedWith, user.PushToken, user.CreatedAt,
	)
	if err != nil {
		return models.NewStorageError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, email, mood, mood_last_updated, paired_with, push_token, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Mood, &user.MoodLastUpdated,
		&user.PairedWith, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewStorageError("failed to get user", err)
	}
	return &user, nil
}

// Exists checks if a user id is taken
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, models.NewStorageError("failed to check user existence", err)
	}
	return exists, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET push_token = $1 WHERE id = $2`, pushToken, id)
	if err != nil {
		return models.NewStorageError("failed to update push token", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMood updates the current mood of an existing user
func (r *UserRepository) SetMood(ctx context.Context, id, emoji string, at time.Time) error {
	query := `UPDATE users SET mood = $1, mood_last_updated = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, emoji, at, id)
	if err != nil {
		return models.NewStorageError("failed to update mood", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpsertMood sets the current mood, creating the user row if needed
func (r *UserRepository) UpsertMood(ctx context.Context, id, emoji string, at time.Time) error {
	query := `
		INSERT INTO users (id, mood, mood_last_updated, created_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET mood = EXCLUDED.mood, mood_last_updated = EXCLUDED.mood_last_updated
	`
	if _, err := r.db.Exec(ctx, query, id, emoji, at); err != nil {
		return models.NewStorageError("failed to upsert mood", err)
	}
	return nil
}

// Pair links two users in a single transaction
func (r *UserRepository) Pair(ctx context.Context, selfID, partnerID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.NewStorageError("failed to begin pairing", err)
	}
	defer tx.Rollback(ctx)

	// Lock both rows in id order so concurrent pair requests cannot deadlock.
	rows, err := tx.Query(ctx,
		`SELECT id, paired_with FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		[]string{selfID, partnerID},
	)
	if err != nil {
		return models.NewStorageError("failed to lock users", err)
	}
	current := make(map[string]*string, 2)
	for rows.Next() {
		var id string
		var pairedWith *string
		if err := rows.Scan(&id, &pairedWith); err != nil {
			rows.Close()
			return models.NewStorageError("failed to scan user", err)
		}
		current[id] = pairedWith
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.NewStorageError("failed to lock users", err)
	}

	selfPaired, selfOK := current[selfID]
	partnerPaired, partnerOK := current[partnerID]
	switch {
	case !partnerOK:
		return models.ErrCandidateNotFound
	case !selfOK:
		return models.ErrNotFound
	case partnerPaired != nil && *partnerPaired != "" && *partnerPaired != selfID:
		return models.ErrCandidateAlreadyPaired
	case selfPaired != nil && *selfPaired != "" && *selfPaired != partnerID:
		return models.ErrAlreadyPaired
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET paired_with = $1 WHERE id = $2`, partnerID, selfID); err != nil {
		return models.NewStorageError("failed to pair user", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET paired_with = $1 WHERE id = $2`, selfID, partnerID); err != nil {
		return models.NewStorageError("failed to pair partner", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.NewStorageError("failed to commit pairing", err)
	}
	return nil
}

// Unpair clears the pairing on both users in a single transaction
func (r *UserRepository) Unpair(ctx context.Context, selfID, partnerID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.NewStorageError("failed to begin unpairing", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `UPDATE users SET paired_with = NULL WHERE id = $1`, selfID)
	if err != nil {
		return models.NewStorageError("failed to unpair user", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET paired_with = NULL WHERE id = $1 AND paired_with = $2`,
		partnerID, selfID,
	); err != nil {
		return models.NewStorageError("failed to unpair partner", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.NewStorageError("failed to commit unpairing", err)
	}
	return nil
}
