package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vantage/server/internal/model"
)

// ProfileUpdate carries a partial update of mutable display fields.
// Nil pointers leave the column untouched.
type ProfileUpdate struct {
	Name     *string
	Phone    *string
	Username *string
}

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, email, passwordHash string, profile ProfileUpdate) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (model.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, profile ProfileUpdate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, username, name, phone, password_hash, is_verified, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.Username,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	return user, nil
}

// Create inserts a new user. Returns ErrDuplicate when the email or username is taken.
func (r *userRepo) Create(ctx context.Context, email, passwordHash string, profile ProfileUpdate) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, username, name, phone, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		email, profile.Username, profile.Name, profile.Phone, passwordHash)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByIdentifier retrieves a user by email or username. A single query matches
// both columns so the lookup cost does not depend on which field matched.
// Emails are stored lower-cased, so the email match folds case; usernames
// match exactly.
func (r *userRepo) GetByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = lower($1) OR username = $1
	`, identifier)
	return scanUser(row)
}

// MarkVerified sets is_verified = true for the user.
func (r *userRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `
		UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1
	`, id)
}

// UpdatePassword replaces the stored password hash and bumps updated_at.
// Challenge and session invalidation is handled by the auth service on top.
func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.execOne(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
}

// UpdateEmail replaces the user's email. Returns ErrDuplicate when taken.
func (r *userRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	err := r.execOne(ctx, `
		UPDATE users SET email = $2, updated_at = now() WHERE id = $1
	`, id, email)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateProfile applies a partial update of display fields. Returns ErrDuplicate
// when a username change collides with an existing one.
func (r *userRepo) UpdateProfile(ctx context.Context, id uuid.UUID, profile ProfileUpdate) error {
	err := r.execOne(ctx, `
		UPDATE users
		SET name       = COALESCE($2, name),
		    phone      = COALESCE($3, phone),
		    username   = COALESCE($4, username),
		    updated_at = now()
		WHERE id = $1
	`, id, profile.Name, profile.Phone, profile.Username)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes the user; sessions and OTP challenges cascade via FK.
func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *userRepo) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
