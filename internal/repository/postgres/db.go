// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"mdsync-backend/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects a pool to dsn and verifies the connection
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			mood TEXT NOT NULL DEFAULT '',
			mood_last_updated TIMESTAMPTZ,
			paired_with TEXT,
			push_token TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS mood_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			mood TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mood_history_user ON mood_history (user_id, recorded_at DESC)`,
		`CREATE TABLE IF NOT EXISTS reactions (
			id TEXT PRIMARY KEY,
			to_user_id TEXT NOT NULL,
			from_user_id TEXT NOT NULL,
			from_name TEXT NOT NULL DEFAULT '',
			emoji TEXT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reactions_inbox ON reactions (to_user_id, sent_at DESC)`,
		`CREATE TABLE IF NOT EXISTS chat_status (
			pair_id TEXT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			last_opened TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS chat_notifications (
			pair_id TEXT PRIMARY KEY,
			has_unread BOOLEAN NOT NULL DEFAULT FALSE,
			last_sender_id TEXT NOT NULL DEFAULT '',
			last_sender_name TEXT NOT NULL DEFAULT '',
			last_updated TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			pair_id TEXT NOT NULL,
			from_user_id TEXT NOT NULL,
			from_name TEXT NOT NULL DEFAULT '',
			emoji TEXT,
			text TEXT,
			type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			reply_status TEXT,
			reply_by_user_id TEXT,
			is_starred BOOLEAN
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_pair ON chat_messages (pair_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_expiry ON chat_messages (pair_id, expires_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// NewStore builds the PostgreSQL-backed repositories
func NewStore(db *pgxpool.Pool) *repository.Store {
	return &repository.Store{
		Users:     NewUserRepository(db),
		Moods:     NewMoodRepository(db),
		Reactions: NewReactionRepository(db),
		Chats:     NewChatRepository(db),
	}
}
