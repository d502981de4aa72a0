package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vantage/server/internal/model"
)

// OtpRepo defines the interface for OTP challenge repository operations
type OtpRepo interface {
	CreateOrReplace(ctx context.Context, userID uuid.UUID, purpose model.OtpPurpose, codeHash, challengeSalt string, expiresAt time.Time) (uuid.UUID, error)
	GetActive(ctx context.Context, userID uuid.UUID, purpose model.OtpPurpose) (model.OtpChallenge, error)
	Consume(ctx context.Context, challengeID uuid.UUID) error
	ConsumeAllForUser(ctx context.Context, userID uuid.UUID) error
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// CreateOrReplace ensures only one active challenge per (user, purpose): atomically
// consumes any existing unconsumed challenge and inserts a new one. An advisory
// lock serializes concurrent issuance for the same pair.
func (r *otpRepo) CreateOrReplace(ctx context.Context, userID uuid.UUID, purpose model.OtpPurpose, codeHash, challengeSalt string, expiresAt time.Time) (uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Blocks until we hold the lock; released on COMMIT/ROLLBACK.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
		userID.String(), string(purpose))
	if err != nil {
		return uuid.Nil, fmt.Errorf("advisory lock: %w", err)
	}

	// Consume ALL unconsumed rows for the pair, including expired ones, to satisfy
	// the partial unique index before the INSERT.
	_, err = tx.ExecContext(ctx, `
		UPDATE otp_challenges
		SET consumed_at = now()
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL
	`, userID, purpose)
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume existing challenges: %w", err)
	}

	var idStr string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_challenges (user_id, purpose, code_hash, challenge_salt, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, purpose, codeHash, challengeSalt, expiresAt).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	challengeID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse challenge ID: %w", err)
	}
	return challengeID, nil
}

// GetActive returns the unconsumed, unexpired challenge for the pair, or ErrNotFound.
func (r *otpRepo) GetActive(ctx context.Context, userID uuid.UUID, purpose model.OtpPurpose) (model.OtpChallenge, error) {
	var c model.OtpChallenge
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, purpose, code_hash, challenge_salt, expires_at, consumed_at, created_at
		FROM otp_challenges
		WHERE user_id = $1
		  AND purpose = $2
		  AND consumed_at IS NULL
		  AND expires_at > now()
	`, userID, purpose).Scan(
		&idStr,
		&userIDStr,
		&c.Purpose,
		&c.CodeHash,
		&c.ChallengeSalt,
		&c.ExpiresAt,
		&c.ConsumedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OtpChallenge{}, ErrNotFound
		}
		return model.OtpChallenge{}, fmt.Errorf("query challenge: %w", err)
	}
	c.ID, _ = uuid.Parse(idStr)
	c.UserID, _ = uuid.Parse(userIDStr)
	return c, nil
}

// Consume marks the challenge consumed. The guard on consumed_at makes consumption
// atomic: of two concurrent verifies only one sees a row updated.
func (r *otpRepo) Consume(ctx context.Context, challengeID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_challenges SET consumed_at = now()
		WHERE id = $1 AND consumed_at IS NULL
	`, challengeID)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeAllForUser invalidates every active challenge for the user, any purpose.
// Called whenever the password changes through any path.
func (r *otpRepo) ConsumeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE otp_challenges SET consumed_at = now()
		WHERE user_id = $1 AND consumed_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("consume all challenges for user: %w", err)
	}
	return nil
}
