package services

import (
	"testing"

	"mdsync-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPairing_LinksBothRecords(t *testing.T) {
	env := newTestEnv(t)

	partnerID, err := env.pairing.RequestPairing(env.ctx, "u1", "  u2 ")
	require.NoError(t, err)
	assert.Equal(t, "u2", partnerID)

	u1, err := env.store.Users.GetByID(env.ctx, "u1")
	require.NoError(t, err)
	u2, err := env.store.Users.GetByID(env.ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", u1.PartnerID())
	assert.Equal(t, "u1", u2.PartnerID())

	status, err := env.pairing.GetPairingStatus(env.ctx, "u2")
	require.NoError(t, err)
	assert.True(t, status.IsPaired())
	assert.Equal(t, "Alice", status.PartnerName)
	assert.Equal(t, "u1_u2", status.PairID)
}

func TestRequestPairing_Idempotent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pairing.RequestPairing(env.ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = env.pairing.RequestPairing(env.ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = env.pairing.RequestPairing(env.ctx, "u2", "u1")
	require.NoError(t, err)

	u1, _ := env.store.Users.GetByID(env.ctx, "u1")
	u2, _ := env.store.Users.GetByID(env.ctx, "u2")
	assert.Equal(t, "u2", u1.PartnerID())
	assert.Equal(t, "u1", u2.PartnerID())
}

func TestRequestPairing_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.pair(t)

	tests := []struct {
		name      string
		selfID    string
		candidate string
		want      error
	}{
		{"empty candidate", "u3", "   ", models.ErrEmptyCandidate},
		{"self pairing", "u3", "u3", models.ErrSelfPairing},
		{"unknown candidate", "u3", "nobody", models.ErrCandidateNotFound},
		{"candidate already paired", "u3", "u1", models.ErrCandidateAlreadyPaired},
		{"initiator already paired", "u1", "u3", models.ErrAlreadyPaired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.pairing.RequestPairing(env.ctx, tt.selfID, tt.candidate)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, models.IsValidation(err))
		})
	}

	u3, _ := env.store.Users.GetByID(env.ctx, "u3")
	assert.False(t, u3.IsPaired())
	u1, _ := env.store.Users.GetByID(env.ctx, "u1")
	assert.Equal(t, "u2", u1.PartnerID())
}

func TestUnpair_ClearsBothSides(t *testing.T) {
	env := newTestEnv(t)
	env.pair(t)

	require.NoError(t, env.pairing.Unpair(env.ctx, "u2"))

	for _, id := range []string{"u1", "u2"} {
		status, err := env.pairing.GetPairingStatus(env.ctx, id)
		require.NoError(t, err)
		assert.False(t, status.IsPaired(), id)
	}

	assert.ErrorIs(t, env.pairing.Unpair(env.ctx, "u2"), models.ErrNotPaired)

	_, err := env.pairing.RequestPairing(env.ctx, "u1", "u3")
	assert.NoError(t, err, "users can pair again after unpairing")
}

func TestUnpair_PartnerRecordMissing(t *testing.T) {
	env := newTestEnv(t)
	gone := "ghost"
	require.NoError(t, env.store.Users.Create(env.ctx, &models.User{ID: "lone", Name: "Lone", PairedWith: &gone}))

	require.NoError(t, env.pairing.Unpair(env.ctx, "lone"))

	status, err := env.pairing.GetPairingStatus(env.ctx, "lone")
	require.NoError(t, err)
	assert.False(t, status.IsPaired())

	_, err = env.store.Users.GetByID(env.ctx, gone)
	assert.ErrorIs(t, err, models.ErrNotFound, "unpair does not create the missing partner")
}

func TestGetPairingStatus_UnknownUserIsUnpaired(t *testing.T) {
	env := newTestEnv(t)

	status, err := env.pairing.GetPairingStatus(env.ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, status.IsPaired())

	_, err = env.pairing.PairIDFor(env.ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotPaired)
}

func TestWatchPairing_FollowsChanges(t *testing.T) {
	env := newTestEnv(t)

	got := make(chan *models.PairingStatus, 10)
	w, err := env.pairing.WatchPairing(env.ctx, "u2", func(s *models.PairingStatus, err error) {
		assert.NoError(t, err)
		got <- s
	})
	require.NoError(t, err)
	defer w.Stop()

	assert.False(t, receive(t, got).IsPaired())

	env.pair(t)
	status := receive(t, got)
	require.True(t, status.IsPaired())
	assert.Equal(t, "u1", *status.PairedWith)

	require.NoError(t, env.pairing.Unpair(env.ctx, "u1"))
	assert.False(t, receive(t, got).IsPaired())
}
