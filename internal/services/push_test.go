package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, deviceToken, title, body string) error {
	args := m.Called(ctx, deviceToken, title, body)
	return args.Error(0)
}

func TestPushService_NotifyUser(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.users.UpdatePushToken(env.ctx, "u2", " device-token "))

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, "device-token", "Alice", "❤️").Return(nil).Once()
	push := NewPushService(env.users, notifier)

	push.NotifyUser(env.ctx, "u2", "Alice", "❤️")
	push.NotifyUser(env.ctx, "u3", "Alice", "❤️")
	push.NotifyUser(env.ctx, "ghost", "Alice", "❤️")

	notifier.AssertExpectations(t)
}

func TestPushService_FailuresAreSwallowed(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.users.UpdatePushToken(env.ctx, "u1", "token"))

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, "token", mock.Anything, mock.Anything).Return(errors.New("BadDeviceToken"))

	push := NewPushService(env.users, notifier)
	assert.NotPanics(t, func() { push.NotifyUser(env.ctx, "u1", "Bob", "hi") })
	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestPushService_Disabled(t *testing.T) {
	env := newTestEnv(t)

	var nilService *PushService
	assert.False(t, nilService.Enabled())
	assert.False(t, NewPushService(env.users, nil).Enabled())
	assert.NotPanics(t, func() { NewPushService(env.users, nil).NotifyUser(env.ctx, "u1", "x", "y") })
}
