package services

import (
	"testing"
	"time"

	"mdsync-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser_IssuesIdentityAndToken(t *testing.T) {
	env := newTestEnv(t)

	session, err := env.users.CreateUser(env.ctx, "  Alice  ", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, models.ValidUserID(session.User.ID))
	assert.Equal(t, "Alice", session.User.Name)

	userID, err := env.users.ValidateJWT(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, userID)

	stored, err := env.users.GetUser(env.ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
}

func TestCreateUser_DefaultName(t *testing.T) {
	env := newTestEnv(t)

	session, err := env.users.CreateUser(env.ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "User", session.User.Name)
}

func TestValidateJWT_Rejections(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.ValidateJWT("not-a-token")
	assert.Error(t, err)

	other := NewUserService(env.store.Users, "other-secret", time.Hour)
	token, err := other.GenerateJWT("u1", "Alice")
	require.NoError(t, err)
	_, err = env.users.ValidateJWT(token)
	assert.Error(t, err, "tokens signed with another secret are rejected")
}

func TestDisplayNameAndPushToken(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "Alice", env.users.DisplayName(env.ctx, "u1"))
	assert.Equal(t, "User", env.users.DisplayName(env.ctx, "ghost"))

	require.NoError(t, env.users.UpdatePushToken(env.ctx, "u1", "tok"))
	u, err := env.users.GetUser(env.ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.PushToken)
	assert.Equal(t, "tok", *u.PushToken)

	require.NoError(t, env.users.UpdatePushToken(env.ctx, "u1", ""))
	u, err = env.users.GetUser(env.ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u.PushToken)

	assert.ErrorIs(t, env.users.UpdatePushToken(env.ctx, "ghost", "tok"), models.ErrUserNotFound)
}
