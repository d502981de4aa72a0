package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vantage/server/internal/model"
)

// SessionRepo defines the interface for session repository operations
type SessionRepo interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string) (uuid.UUID, error)
	ResolveByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

// Create inserts a new session row bound to the user.
func (r *sessionRepo) Create(ctx context.Context, userID uuid.UUID, tokenHash string) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash)
		VALUES ($1, $2)
		RETURNING id
	`, userID, tokenHash).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session ID: %w", err)
	}
	return id, nil
}

// ResolveByTokenHash returns the session if it exists and is not revoked.
func (r *sessionRepo) ResolveByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, created_at, revoked_at
		FROM sessions
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash).Scan(
		&idStr,
		&userIDStr,
		&s.TokenHash,
		&s.CreatedAt,
		&s.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("find session: %w", err)
	}
	s.ID, _ = uuid.Parse(idStr)
	s.UserID, _ = uuid.Parse(userIDStr)
	return s, nil
}

// Revoke invalidates the session with the given token hash. Idempotent: revoking
// an unknown or already-revoked token is not an error.
func (r *sessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active session for the user, so pre-change
// tokens become useless after a password reset or change.
func (r *sessionRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("revoke all sessions for user: %w", err)
	}
	return nil
}
