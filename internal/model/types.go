package model

import (
	"time"

	"github.com/google/uuid"
)

// OtpPurpose distinguishes what a one-time code proves.
type OtpPurpose string

const (
	OtpPurposeSignupVerify  OtpPurpose = "signup_verify"
	OtpPurposePasswordReset OtpPurpose = "password_reset"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     *string
	Name         *string
	Phone        *string
	PasswordHash string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OtpChallenge holds the hashed material for one issued code.
// The plaintext code is never persisted.
type OtpChallenge struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Purpose       OtpPurpose
	CodeHash      string
	ChallengeSalt string
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	CreatedAt     time.Time
}

// Session is a server-side record backing one opaque cookie token.
// Only the SHA-256 of the token is stored.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Feedback is a contact-form submission.
type Feedback struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Subject   *string
	Message   string
	CreatedAt time.Time
}
