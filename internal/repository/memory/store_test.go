package memory_test

import (
	"context"
	"testing"
	"time"

	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_PairGuards(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.New())
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Users.Create(ctx, &models.User{ID: id}))
	}

	require.NoError(t, store.Users.Pair(ctx, "a", "b"))
	assert.ErrorIs(t, store.Users.Pair(ctx, "c", "a"), models.ErrCandidateAlreadyPaired)
	assert.ErrorIs(t, store.Users.Pair(ctx, "a", "c"), models.ErrAlreadyPaired)
	assert.ErrorIs(t, store.Users.Pair(ctx, "a", "zz"), models.ErrCandidateNotFound)

	c, err := store.Users.GetByID(ctx, "c")
	require.NoError(t, err)
	assert.False(t, c.IsPaired(), "failed pairing must not leave a one-sided write")
}

func TestUserRepository_UnpairRepairsOnlyMatchingPartner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.New())
	partner := "x"
	require.NoError(t, store.Users.Create(ctx, &models.User{ID: "a", PairedWith: &partner}))
	other := "y"
	require.NoError(t, store.Users.Create(ctx, &models.User{ID: "x", PairedWith: &other}))

	require.NoError(t, store.Users.Unpair(ctx, "a", "x"))

	a, _ := store.Users.GetByID(ctx, "a")
	x, _ := store.Users.GetByID(ctx, "x")
	assert.False(t, a.IsPaired())
	assert.Equal(t, "y", x.PartnerID())
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.New())
	require.NoError(t, store.Users.Create(ctx, &models.User{ID: "a", Name: "Alice"}))

	u, _ := store.Users.GetByID(ctx, "a")
	u.Name = "changed"

	again, _ := store.Users.GetByID(ctx, "a")
	assert.Equal(t, "Alice", again.Name)
}

func TestChatRepository_OrderingAndExpiry(t *testing.T) {
	ctx := context.Background()
	chats := memory.NewStore(memory.New()).Chats
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	text := "hi"

	for i, id := range []string{"m3", "m1", "m2"} {
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, chats.CreateMessage(ctx, &models.ChatMessage{
			ID: id, PairID: "p", FromUserID: "a", Text: &text, Type: models.MessageTypeMessage,
			CreatedAt: created, ExpiresAt: created.Add(time.Hour),
		}))
	}

	list, err := chats.ListMessages(ctx, "p")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"m3", "m1", "m2"}, []string{list[0].ID, list[1].ID, list[2].ID})

	expired, err := chats.ListExpired(ctx, "p", base.Add(time.Hour+30*time.Second))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "m3", expired[0].ID)

	n, err := chats.DeleteMessages(ctx, "p", []string{"m3", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	applied, err := chats.SetReply(ctx, "p", "m1", models.ReplyAccepted, "b")
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = chats.SetReply(ctx, "p", "m1", models.ReplyDeferred, "a")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestChatRepository_AbsentDocuments(t *testing.T) {
	ctx := context.Background()
	chats := memory.NewStore(memory.New()).Chats

	status, err := chats.GetStatus(ctx, "p")
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	require.NoError(t, chats.ClearUnread(ctx, "p"))
	n, err := chats.GetNotification(ctx, "p")
	require.NoError(t, err)
	assert.False(t, n.HasUnread)
	assert.Nil(t, n.LastUpdated)
}
