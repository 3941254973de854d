package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"gatehouse-backend/internal/database"
	"gatehouse-backend/internal/logger"
	"gatehouse-backend/internal/models"
	"gatehouse-backend/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid verification code")
)

// UserDirectory is the slice of the user repository the auth service
// needs. *database.UserRepo satisfies it.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// Principal is the resolved identity of an authenticated request. A nil
// Principal means anonymous.
type Principal struct {
	User    *models.User
	Session *session.Session
}

// Service handles credential verification, session issuance and session
// resolution over a pluggable session store.
type Service struct {
	users    UserDirectory
	sessions session.Store
	ttl      time.Duration
	logger   *logger.Logger
}

// NewService creates a new auth service. ttl applies to every issued
// session.
func NewService(users UserDirectory, sessions session.Store, ttl time.Duration, l *logger.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		logger:   l,
	}
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult represents an issued session.
type LoginResult struct {
	User                 *models.User `json:"user"`
	Token                string       `json:"-"`
	ExpiresAt            time.Time    `json:"expires_at"`
	SecondFactorRequired bool         `json:"second_factor_required"`

	// OTPCode is populated only while the login waits for its second
	// factor. It goes to the code deliverer, never to the client.
	OTPCode string `json:"-"`
}

// Login verifies credentials and issues a session. Every credential
// failure collapses into ErrInvalidCredentials so the caller cannot tell
// an unknown username from a wrong password. Accounts with a second
// factor get a session in the authenticating state that authorizes
// nothing until VerifySecondFactor succeeds.
func (s *Service) Login(ctx context.Context, req LoginRequest, ipAddress, userAgent string) (*LoginResult, error) {
	user, err := s.verifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	if user.SecondFactor {
		code, err := generateOTPCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification code: %w", err)
		}

		sess, err := s.issue(ctx, user.ID, session.StateAuthenticating, session.HashID(code), ipAddress, userAgent)
		if err != nil {
			return nil, err
		}

		return &LoginResult{
			User:                 user,
			Token:                sess.ID,
			ExpiresAt:            sess.ExpiresAt,
			SecondFactorRequired: true,
			OTPCode:              code,
		}, nil
	}

	sess, err := s.issue(ctx, user.ID, session.StateAuthenticated, "", ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &LoginResult{
		User:      user,
		Token:     sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// verifyCredentials looks up the user and checks the password hash.
func (s *Service) verifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Federated accounts have no local password.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	valid, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// IssueFor creates an authenticated session for an externally verified
// user, e.g. after a federated login.
func (s *Service) IssueFor(ctx context.Context, user *models.User, ipAddress, userAgent string) (*LoginResult, error) {
	sess, err := s.issue(ctx, user.ID, session.StateAuthenticated, "", ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &LoginResult{
		User:      user,
		Token:     sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// issue generates a fresh identifier and writes the session record. A
// colliding identifier is an internal error, not a silent retry.
func (s *Service) issue(ctx context.Context, userID uuid.UUID, state session.State, challengeHash, ipAddress, userAgent string) (*session.Session, error) {
	id, err := session.GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := session.Session{
		ID:            id,
		UserID:        userID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		State:         state,
		ChallengeHash: challengeHash,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
	}

	if err := s.sessions.Set(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &sess, nil
}

// VerifySecondFactor advances an authenticating session to
// authenticated when the one-time code matches. Absent, expired or
// already-authenticated sessions fail the same way as a wrong code.
func (s *Service) VerifySecondFactor(ctx context.Context, token, code string) (*LoginResult, error) {
	if token == "" || code == "" {
		return nil, ErrInvalidCode
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.State != session.StateAuthenticating {
		return nil, ErrInvalidCode
	}

	want := []byte(sess.ChallengeHash)
	got := []byte(session.HashID(code))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return nil, ErrInvalidCode
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if isNotFound(err) {
			s.deleteQuietly(ctx, sess.ID)
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	sess.State = session.StateAuthenticated
	sess.ChallengeHash = ""
	sess.ExpiresAt = time.Now().Add(s.ttl)
	if err := s.sessions.Update(ctx, *sess); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &LoginResult{
		User:      user,
		Token:     sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// Resolve turns a request's session token into a Principal. Anonymous
// is not a failure: an empty, unknown, expired or mid-handshake token
// and an orphaned session all yield (nil, nil). Only infrastructure
// failures return an error.
func (s *Service) Resolve(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, nil
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.State != session.StateAuthenticated {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if isNotFound(err) {
			// The user was deleted after issuance; drop the orphan.
			s.deleteQuietly(ctx, sess.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &Principal{User: user, Session: sess}, nil
}

// Logout invalidates a session. An unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *Service) deleteQuietly(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to delete session", "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrUserNotFound)
}

// generateOTPCode returns a 6-digit one-time code from the CSPRNG.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
