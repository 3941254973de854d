package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gatehouse-backend/internal/database"
	"gatehouse-backend/internal/logger"
	"gatehouse-backend/internal/models"
	"gatehouse-backend/internal/session"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUsers) add(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
}

func (f *fakeUsers) remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, database.ErrUserNotFound
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, database.ErrUserNotFound
}

func (f *fakeUsers) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func newTestService(t *testing.T, ttl time.Duration) (*Service, *fakeUsers, *session.MemoryStore) {
	t.Helper()
	users := newFakeUsers()
	store := session.NewMemoryStore()
	return NewService(users, store, ttl, logger.New(0)), users, store
}

func TestLogin_CredentialFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, time.Hour)
	users.add(&models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "bob", "secret123"},
		{"empty username", "", "secret123"},
		{"empty password", "alice", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, LoginRequest{Username: tt.username, Password: tt.password}, "", "")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestLogin_FederatedAccountHasNoPassword(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, time.Hour)
	users.add(&models.User{Username: "fed", AuthType: models.AuthTypeOIDC})

	_, err := svc.Login(ctx, LoginRequest{Username: "fed", Password: "anything"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_ResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, time.Hour)
	alice := &models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal}
	users.add(alice)

	result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.False(t, result.SecondFactorRequired)

	principal, err := svc.Resolve(ctx, result.Token)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, alice.ID, principal.User.ID)
}

func TestResolve_EmptyTokenIsAnonymous(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)

	principal, err := svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolve_UnknownTokenIsAnonymous(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)

	principal, err := svc.Resolve(context.Background(), "bogus-token")
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolve_ExpiredSessionIsAnonymous(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, 50*time.Millisecond)
	users.add(&models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal})

	result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "", "")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	principal, err := svc.Resolve(ctx, result.Token)
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestLogin_ConcurrentSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, time.Hour)
	users.add(&models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal})

	first, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "", "")
	require.NoError(t, err)
	second, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "", "")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	require.NoError(t, svc.Logout(ctx, first.Token))

	principal, err := svc.Resolve(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, principal)

	principal, err = svc.Resolve(ctx, second.Token)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "alice", principal.User.Username)
}

func TestSecondFactorFlow(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, time.Hour)
	users.add(&models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal, SecondFactor: true})

	result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "", "")
	require.NoError(t, err)
	require.True(t, result.SecondFactorRequired)
	require.Len(t, result.OTPCode, 6)

	// Mid-handshake sessions never authorize anything.
	principal, err := svc.Resolve(ctx, result.Token)
	require.NoError(t, err)
	assert.Nil(t, principal)

	// A wrong code does not advance the session.
	_, err = svc.VerifySecondFactor(ctx, result.Token, "000000")
	if result.OTPCode != "000000" {
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	verified, err := svc.VerifySecondFactor(ctx, result.Token, result.OTPCode)
	require.NoError(t, err)
	assert.Equal(t, result.Token, verified.Token)

	principal, err = svc.Resolve(ctx, result.Token)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "alice", principal.User.Username)
}

func TestVerifySecondFactor_AuthenticatedSessionRejected(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, time.Hour)
	users.add(&models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal})

	result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "", "")
	require.NoError(t, err)

	_, err = svc.VerifySecondFactor(ctx, result.Token, "123456")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestResolve_OrphanedSessionIsCleanedUp(t *testing.T) {
	ctx := context.Background()
	svc, users, store := newTestService(t, time.Hour)
	alice := &models.User{Username: "alice", PasswordHash: mustHash(t, "secret123"), AuthType: models.AuthTypeLocal}
	users.add(alice)

	result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"}, "", "")
	require.NoError(t, err)

	users.remove(alice.ID)

	principal, err := svc.Resolve(ctx, result.Token)
	require.NoError(t, err)
	assert.Nil(t, principal)

	// The orphaned record was deleted, not just hidden.
	_, err = store.Get(ctx, result.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLogout_UnknownTokenIsNoError(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	assert.NoError(t, svc.Logout(context.Background(), "bogus"))
	assert.NoError(t, svc.Logout(context.Background(), ""))
}
