// Package repository defines the typed document store the engines run on.
//
// Implementations return models.ErrNotFound for missing documents and wrap
// every other failure in a *models.StorageError.
package repository

import (
	"context"
	"time"

	"mdsync-backend/internal/models"
)

// UserRepository stores user records and the pairing relation between them
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error

	// SetMood updates an existing record and returns models.ErrNotFound if
	// there is none.
	SetMood(ctx context.Context, id, emoji string, at time.Time) error
	// UpsertMood merges the mood into the record, creating it if missing.
	UpsertMood(ctx context.Context, id, emoji string, at time.Time) error

	// Pair sets selfID.paired_with = partnerID and partnerID.paired_with =
	// selfID in one atomic write. A missing partner row yields
	// models.ErrCandidateNotFound, a missing self row models.ErrNotFound. The
	// partner row is only written if it is unpaired or already points at
	// selfID (models.ErrCandidateAlreadyPaired otherwise); the self row
	// likewise (models.ErrAlreadyPaired). Nothing is committed on error.
	Pair(ctx context.Context, selfID, partnerID string) error
	// Unpair clears selfID.paired_with and, where it still points at selfID,
	// partnerID.paired_with in one atomic write. A missing partner row is not
	// an error.
	Unpair(ctx context.Context, selfID, partnerID string) error
}

// MoodRepository stores the append-only mood history of each user
type MoodRepository interface {
	Append(ctx context.Context, entry *models.MoodHistoryEntry) error
	// List returns entries newest first. limit <= 0 means no limit.
	List(ctx context.Context, userID string, limit int) ([]*models.MoodHistoryEntry, error)
}

// ReactionRepository stores each user's reaction inbox
type ReactionRepository interface {
	Create(ctx context.Context, reaction *models.Reaction) error
	// Latest returns the most recent reaction addressed to userID.
	Latest(ctx context.Context, userID string) (*models.Reaction, error)
}

// ChatRepository stores the pair-scoped cooldown chat resources
type ChatRepository interface {
	// GetStatus never returns models.ErrNotFound: an absent status is
	// reported as disabled.
	GetStatus(ctx context.Context, pairID string) (*models.ChatStatus, error)
	SetStatus(ctx context.Context, status *models.ChatStatus) error

	// GetNotification reports an absent notification as a zero value.
	GetNotification(ctx context.Context, pairID string) (*models.ChatNotification, error)
	// MergeNotification upserts the notification fields it is given.
	MergeNotification(ctx context.Context, n *models.ChatNotification) error
	// ClearUnread sets has_unread = false; absent notifications are left absent.
	ClearUnread(ctx context.Context, pairID string) error

	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessage(ctx context.Context, pairID, messageID string) (*models.ChatMessage, error)
	// ListMessages returns every stored message, oldest first.
	ListMessages(ctx context.Context, pairID string) ([]*models.ChatMessage, error)
	// SetReply records the reply only if none is recorded yet and reports
	// whether it did.
	SetReply(ctx context.Context, pairID, messageID string, status models.ReplyStatus, byUserID string) (bool, error)
	SetStarred(ctx context.Context, pairID, messageID string, starred bool) error
	// ListExpired returns messages whose expires_at is before the given time.
	ListExpired(ctx context.Context, pairID string, before time.Time) ([]*models.ChatMessage, error)
	// DeleteMessages removes the given messages in a single batch and returns
	// how many existed.
	DeleteMessages(ctx context.Context, pairID string, ids []string) (int, error)
	// ListPairIDs returns every pair id that currently has messages.
	ListPairIDs(ctx context.Context) ([]string, error)
}

// Store bundles the repositories of one backend
type Store struct {
	Users     UserRepository
	Moods     MoodRepository
	Reactions ReactionRepository
	Chats     ChatRepository
}
