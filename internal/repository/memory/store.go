// Package memory implements the repository interfaces in process memory.
// It backs the "memory" database driver and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository"
)

// DB holds every collection behind a single lock, so each repository call is
// atomic with respect to the others.
type DB struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	moods         map[string][]*models.MoodHistoryEntry
	reactions     map[string][]*models.Reaction
	statuses      map[string]*models.ChatStatus
	notifications map[string]*models.ChatNotification
	messages      map[string]map[string]*models.ChatMessage
}

// New creates an empty in-memory database
func New() *DB {
	return &DB{
		users:         make(map[string]*models.User),
		moods:         make(map[string][]*models.MoodHistoryEntry),
		reactions:     make(map[string][]*models.Reaction),
		statuses:      make(map[string]*models.ChatStatus),
		notifications: make(map[string]*models.ChatNotification),
		messages:      make(map[string]map[string]*models.ChatMessage),
	}
}

// NewStore builds repositories sharing one in-memory database
func NewStore(db *DB) *repository.Store {
	return &repository.Store{
		Users:     &UserRepository{db: db},
		Moods:     &MoodRepository{db: db},
		Reactions: &ReactionRepository{db: db},
		Chats:     &ChatRepository{db: db},
	}
}

func ptr[T any](v T) *T { return &v }

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.MoodLastUpdated = copyPtr(u.MoodLastUpdated)
	c.PairedWith = copyPtr(u.PairedWith)
	c.PushToken = copyPtr(u.PushToken)
	return &c
}

func copyMessage(m *models.ChatMessage) *models.ChatMessage {
	c := *m
	c.Emoji = copyPtr(m.Emoji)
	c.Text = copyPtr(m.Text)
	c.ReplyStatus = copyPtr(m.ReplyStatus)
	c.ReplyByUserID = copyPtr(m.ReplyByUserID)
	c.IsStarred = copyPtr(m.IsStarred)
	return &c
}

// UserRepository is the in-memory users collection
type UserRepository struct{ db *DB }

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	_, ok := r.db.users[id]
	return ok, nil
}

func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.PushToken = copyPtr(pushToken)
	return nil
}

func (r *UserRepository) SetMood(ctx context.Context, id, emoji string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Mood = emoji
	u.MoodLastUpdated = ptr(at)
	return nil
}

func (r *UserRepository) UpsertMood(ctx context.Context, id, emoji string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		u = &models.User{ID: id, CreatedAt: at}
		r.db.users[id] = u
	}
	u.Mood = emoji
	u.MoodLastUpdated = ptr(at)
	return nil
}

func (r *UserRepository) Pair(ctx context.Context, selfID, partnerID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	partner, ok := r.db.users[partnerID]
	if !ok {
		return models.ErrCandidateNotFound
	}
	self, ok := r.db.users[selfID]
	if !ok {
		return models.ErrNotFound
	}
	if p := partner.PartnerID(); p != "" && p != selfID {
		return models.ErrCandidateAlreadyPaired
	}
	if p := self.PartnerID(); p != "" && p != partnerID {
		return models.ErrAlreadyPaired
	}
	self.PairedWith = ptr(partnerID)
	partner.PairedWith = ptr(selfID)
	return nil
}

func (r *UserRepository) Unpair(ctx context.Context, selfID, partnerID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	self, ok := r.db.users[selfID]
	if !ok {
		return models.ErrNotFound
	}
	self.PairedWith = nil
	if partner, ok := r.db.users[partnerID]; ok && partner.PartnerID() == selfID {
		partner.PairedWith = nil
	}
	return nil
}

// MoodRepository is the in-memory mood history collection
type MoodRepository struct{ db *DB }

func (r *MoodRepository) Append(ctx context.Context, entry *models.MoodHistoryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *entry
	r.db.moods[entry.UserID] = append(r.db.moods[entry.UserID], &c)
	return nil
}

func (r *MoodRepository) List(ctx context.Context, userID string, limit int) ([]*models.MoodHistoryEntry, error) {
	r.db.mu.RLock()
	stored := r.db.moods[userID]
	entries := make([]*models.MoodHistoryEntry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		c := *stored[i]
		entries = append(entries, &c)
	}
	r.db.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ReactionRepository is the in-memory reaction inbox collection
type ReactionRepository struct{ db *DB }

func (r *ReactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *reaction
	r.db.reactions[reaction.ToUserID] = append(r.db.reactions[reaction.ToUserID], &c)
	return nil
}

func (r *ReactionRepository) Latest(ctx context.Context, userID string) (*models.Reaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var latest *models.Reaction
	for _, reaction := range r.db.reactions[userID] {
		if latest == nil || !reaction.Timestamp.Before(latest.Timestamp) {
			latest = reaction
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	c := *latest
	return &c, nil
}

// ChatRepository is the in-memory pair-scoped chat collection
type ChatRepository struct{ db *DB }

func (r *ChatRepository) GetStatus(ctx context.Context, pairID string) (*models.ChatStatus, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if s, ok := r.db.statuses[pairID]; ok {
		c := *s
		c.LastOpened = copyPtr(s.LastOpened)
		return &c, nil
	}
	return &models.ChatStatus{PairID: pairID}, nil
}

func (r *ChatRepository) SetStatus(ctx context.Context, status *models.ChatStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *status
	if prev, ok := r.db.statuses[status.PairID]; ok && c.LastOpened == nil {
		c.LastOpened = prev.LastOpened
	}
	c.LastOpened = copyPtr(c.LastOpened)
	r.db.statuses[status.PairID] = &c
	return nil
}

func (r *ChatRepository) GetNotification(ctx context.Context, pairID string) (*models.ChatNotification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if n, ok := r.db.notifications[pairID]; ok {
		c := *n
		c.LastUpdated = copyPtr(n.LastUpdated)
		return &c, nil
	}
	return &models.ChatNotification{PairID: pairID}, nil
}

func (r *ChatRepository) MergeNotification(ctx context.Context, n *models.ChatNotification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *n
	if prev, ok := r.db.notifications[n.PairID]; ok && c.LastUpdated == nil {
		c.LastUpdated = prev.LastUpdated
	}
	c.LastUpdated = copyPtr(c.LastUpdated)
	r.db.notifications[n.PairID] = &c
	return nil
}

func (r *ChatRepository) ClearUnread(ctx context.Context, pairID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if n, ok := r.db.notifications[pairID]; ok {
		n.HasUnread = false
	}
	return nil
}

func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	pair, ok := r.db.messages[msg.PairID]
	if !ok {
		pair = make(map[string]*models.ChatMessage)
		r.db.messages[msg.PairID] = pair
	}
	pair[msg.ID] = copyMessage(msg)
	return nil
}

func (r *ChatRepository) GetMessage(ctx context.Context, pairID, messageID string) (*models.ChatMessage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	msg, ok := r.db.messages[pairID][messageID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyMessage(msg), nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, pairID string) ([]*models.ChatMessage, error) {
	return r.filter(pairID, func(*models.ChatMessage) bool { return true }), nil
}

func (r *ChatRepository) SetReply(ctx context.Context, pairID, messageID string, status models.ReplyStatus, byUserID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	msg, ok := r.db.messages[pairID][messageID]
	if !ok || msg.ReplyStatus != nil {
		return false, nil
	}
	msg.ReplyStatus = ptr(status)
	msg.ReplyByUserID = ptr(byUserID)
	return true, nil
}

func (r *ChatRepository) SetStarred(ctx context.Context, pairID, messageID string, starred bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	msg, ok := r.db.messages[pairID][messageID]
	if !ok {
		return models.ErrNotFound
	}
	msg.IsStarred = ptr(starred)
	return nil
}

func (r *ChatRepository) ListExpired(ctx context.Context, pairID string, before time.Time) ([]*models.ChatMessage, error) {
	return r.filter(pairID, func(m *models.ChatMessage) bool { return m.ExpiresAt.Before(before) }), nil
}

func (r *ChatRepository) DeleteMessages(ctx context.Context, pairID string, ids []string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	pair := r.db.messages[pairID]
	deleted := 0
	for _, id := range ids {
		if _, ok := pair[id]; ok {
			delete(pair, id)
			deleted++
		}
	}
	if pair != nil && len(pair) == 0 {
		delete(r.db.messages, pairID)
	}
	return deleted, nil
}

func (r *ChatRepository) ListPairIDs(ctx context.Context) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	ids := make([]string, 0, len(r.db.messages))
	for id := range r.db.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *ChatRepository) filter(pairID string, keep func(*models.ChatMessage) bool) []*models.ChatMessage {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.ChatMessage
	for _, msg := range r.db.messages[pairID] {
		if keep(msg) {
			out = append(out, copyMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
