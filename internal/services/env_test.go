package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"mdsync-backend/internal/events"
	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository"
	"mdsync-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	ctx       context.Context
	store     *repository.Store
	broker    *events.LocalBroker
	clock     *testClock
	users     *UserService
	pairing   *PairingService
	moods     *MoodService
	reactions *ReactionService
	chat      *ChatService
}

var testNames = map[string]string{"u1": "Alice", "u2": "Bob", "u3": "Carol"}

// newTestEnv wires every engine to one in-memory store and creates u1, u2
// and u3
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		ctx:    context.Background(),
		store:  memory.NewStore(memory.New()),
		broker: events.NewLocalBroker(),
		clock:  newTestClock(),
	}
	t.Cleanup(func() { env.broker.Close() })

	env.users = NewUserService(env.store.Users, "test-secret", time.Hour)
	env.pairing = NewPairingService(env.store.Users, env.broker)
	env.moods = NewMoodService(env.store.Users, env.store.Moods, env.pairing, env.broker)
	env.moods.SetClock(env.clock.Now)
	env.reactions = NewReactionService(env.store.Reactions, env.broker)
	env.reactions.SetClock(env.clock.Now)
	env.chat = NewChatService(env.store.Chats, env.users, env.broker, nil)
	env.chat.SetClock(env.clock.Now)

	for id, name := range testNames {
		require.NoError(t, env.store.Users.Create(env.ctx, &models.User{ID: id, Name: name}))
	}
	return env
}

// pair pairs u1 with u2 and returns their pair id
func (e *testEnv) pair(t *testing.T) string {
	t.Helper()
	_, err := e.pairing.RequestPairing(e.ctx, "u1", "u2")
	require.NoError(t, err)
	return models.PairID("u1", "u2")
}

// enabledChat pairs u1 with u2 and enables their chat
func (e *testEnv) enabledChat(t *testing.T) string {
	t.Helper()
	pairID := e.pair(t)
	require.NoError(t, e.chat.EnableChat(e.ctx, pairID))
	return pairID
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for delivery")
		var zero T
		return zero
	}
}

func strPtr(s string) *string { return &s }
