package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse-backend/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepo handles user database operations
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user. The username uniqueness constraint is
// enforced by the database; a duplicate returns ErrUserAlreadyExists.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, auth_type, second_factor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Username, user.Email, user.PasswordHash,
		user.AuthType, user.SecondFactor, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserAlreadyExists
		}
		return err
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT id, username, email, password_hash, auth_type, second_factor, created_at, updated_at, last_login
		FROM users WHERE id = ?
	`, id.String())
}

// GetByUsername retrieves a user by exact, case-sensitive username
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT id, username, email, password_hash, auth_type, second_factor, created_at, updated_at, last_login
		FROM users WHERE username = ?
	`, username)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var id string
	var email, passwordHash sql.NullString
	var lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&id, &user.Username, &email, &passwordHash,
		&user.AuthType, &user.SecondFactor,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = email.String
	}
	if passwordHash.Valid {
		user.PasswordHash = passwordHash.String
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time
	}

	return user, nil
}

// Delete deletes a user
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id.String())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateLastLogin updates the user's last login timestamp
func (r *UserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", time.Now(), id.String())
	return err
}

// Count returns the total number of users
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
