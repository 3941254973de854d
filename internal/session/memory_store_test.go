package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(ttl time.Duration) Session {
	id, _ := GenerateID()
	now := time.Now()
	return Session{
		ID:        id,
		UserID:    uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		State:     StateAuthenticated,
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession(time.Hour)
	require.NoError(t, store.Set(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, StateAuthenticated, got.State)
}

func TestMemoryStore_GetAbsent(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession(time.Hour)
	require.NoError(t, store.Set(ctx, s))
	assert.ErrorIs(t, store.Set(ctx, s), ErrDuplicateID)
}

func TestMemoryStore_ExpiryBoundaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession(time.Hour)
	require.NoError(t, store.Set(ctx, s))

	// A session expiring exactly "now" is already dead.
	store.now = func() time.Time { return s.ExpiresAt }

	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The expired record was removed on read.
	store.now = time.Now
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession(time.Hour)
	s.State = StateAuthenticating
	s.ChallengeHash = HashID("123456")
	require.NoError(t, store.Set(ctx, s))

	s.State = StateAuthenticated
	s.ChallengeHash = ""
	require.NoError(t, store.Update(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, got.State)
	assert.Empty(t, got.ChallengeHash)
}

func TestMemoryStore_UpdateAbsent(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.Update(context.Background(), newTestSession(time.Hour)), ErrSessionNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession(time.Hour)
	require.NoError(t, store.Set(ctx, s))
	require.NoError(t, store.Delete(ctx, s.ID))

	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, s.ID))
}

func TestMemoryStore_DeleteExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	live := newTestSession(time.Hour)
	dead := newTestSession(-time.Minute)
	require.NoError(t, store.Set(ctx, live))
	require.NoError(t, store.Set(ctx, dead))

	count, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = store.Get(ctx, live.ID)
	assert.NoError(t, err)
}
