package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrDuplicateID     = errors.New("session id already exists")
)

// State tags a session within the login flow. Only an authenticated
// session resolves to a usable principal.
type State string

const (
	// StateAuthenticated marks a fully logged-in session.
	StateAuthenticated State = "authenticated"
	// StateAuthenticating marks a session waiting for a second factor.
	StateAuthenticating State = "authenticating"
)

// Session binds an opaque token to a user for a bounded time. ID is the
// raw token; relational stores persist only its hash.
type Session struct {
	ID            string    `json:"-"`
	UserID        uuid.UUID `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	State         State     `json:"state"`
	ChallengeHash string    `json:"challenge_hash,omitempty"` // set while State == StateAuthenticating
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}

// Expired reports whether the session is past its expiry at the given
// instant. Expiry is exclusive: a session expiring exactly now is dead.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store is the contract shared by the sqlite, redis and in-memory
// session backends. Get never returns an expired record: backends either
// check expiry at read time or rely on native TTL eviction.
type Store interface {
	// Set writes a new session. An existing id is refused with
	// ErrDuplicateID, never overwritten.
	Set(ctx context.Context, s Session) error
	// Get returns ErrSessionNotFound for absent ids and
	// ErrSessionExpired for records past expiry.
	Get(ctx context.Context, id string) (*Session, error)
	// Update rewrites an existing session, used to advance multi-step
	// login state.
	Update(ctx context.Context, s Session) error
	// Delete removes a session. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions whose expiry is at or before the
	// given instant and reports how many were removed. Backends with
	// native TTL eviction return 0.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
