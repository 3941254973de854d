package session

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse-backend/internal/database"
)

// SQLiteStore keeps sessions in the sessions table, keyed by the SHA-256
// hash of the token.
type SQLiteStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteStore creates a relational session store over the shared
// database connection.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (r *SQLiteStore) Set(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at, state, challenge_hash, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, HashID(s.ID), s.UserID.String(), s.CreatedAt, s.ExpiresAt,
		s.State, s.ChallengeHash, s.IPAddress, s.UserAgent)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "PRIMARY KEY constraint failed") {
			return ErrDuplicateID
		}
		return err
	}

	return nil
}

func (r *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	s := &Session{ID: id}
	var userID string
	var challengeHash, ipAddress, userAgent sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, created_at, expires_at, state, challenge_hash, ip_address, user_agent
		FROM sessions WHERE token_hash = ?
	`, HashID(id)).Scan(
		&userID, &s.CreatedAt, &s.ExpiresAt, &s.State,
		&challengeHash, &ipAddress, &userAgent,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	s.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	if challengeHash.Valid {
		s.ChallengeHash = challengeHash.String
	}
	if ipAddress.Valid {
		s.IPAddress = ipAddress.String
	}
	if userAgent.Valid {
		s.UserAgent = userAgent.String
	}

	// The sweep is periodic; reads must not hand out records it has not
	// caught up with yet.
	if s.Expired(r.now()) {
		r.Delete(ctx, id)
		return nil, ErrSessionExpired
	}

	return s, nil
}

func (r *SQLiteStore) Update(ctx context.Context, s Session) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET expires_at = ?, state = ?, challenge_hash = ? WHERE token_hash = ?
	`, s.ExpiresAt, s.State, s.ChallengeHash, HashID(s.ID))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (r *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", HashID(id))
	return err
}

func (r *SQLiteStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
