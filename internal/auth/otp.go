package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/vantage/server/internal/model"
	"github.com/vantage/server/internal/repo"
)

const (
	otpLength = 6
	otpExpiry = 5 * time.Minute
)

var otpCodeSpace = big.NewInt(1_000_000)

// OtpService generates and verifies short-lived one-time codes. Codes are stored
// only as salted hashes; issuance supersedes any prior active challenge of the
// same purpose and consumption is single-use.
type OtpService struct {
	otpRepo    repo.OtpRepo
	serverSalt string
	now        func() time.Time
}

// NewOtpService creates a new OTP service.
func NewOtpService(otpRepo repo.OtpRepo, serverSalt string) *OtpService {
	return &OtpService{
		otpRepo:    otpRepo,
		serverSalt: serverSalt,
		now:        time.Now,
	}
}

// Issue generates a fresh 6-digit code for the (user, purpose) pair, replacing
// any prior active challenge. The plaintext code is returned solely for
// out-of-band delivery and must not be persisted by the caller.
func (s *OtpService) Issue(ctx context.Context, userID uuid.UUID, purpose model.OtpPurpose) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	challengeSalt, err := generateChallengeSalt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	codeHash := hashOTPHex(s.serverSalt, challengeSalt, code)
	expiresAt := s.now().Add(otpExpiry)

	if _, err := s.otpRepo.CreateOrReplace(ctx, userID, purpose, codeHash, challengeSalt, expiresAt); err != nil {
		return "", fmt.Errorf("create challenge: %w", err)
	}
	return code, nil
}

// Verify checks the candidate code against the active challenge and consumes it
// on success. Wrong code, expired challenge, consumed challenge, and no challenge
// all surface as the same ErrOtpInvalid.
func (s *OtpService) Verify(ctx context.Context, userID uuid.UUID, purpose model.OtpPurpose, code string) error {
	challenge, err := s.otpRepo.GetActive(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("load challenge: %w", err)
	}

	// Wall-clock expiry: a verify attempt at or after expires_at fails regardless
	// of code correctness.
	if !s.now().Before(challenge.ExpiresAt) {
		return ErrOtpInvalid
	}

	candidate := hashOTPBytes(s.serverSalt, challenge.ChallengeSalt, code)
	stored, err := hex.DecodeString(challenge.CodeHash)
	if err != nil {
		return fmt.Errorf("decode stored hash: %w", err)
	}
	if subtle.ConstantTimeCompare(candidate, stored) != 1 {
		return ErrOtpInvalid
	}

	// Atomic check-and-mark: of two concurrent verifies racing the same
	// challenge, only one consume succeeds.
	if err := s.otpRepo.Consume(ctx, challenge.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

// InvalidateAll consumes every active challenge for the user, any purpose.
func (s *OtpService) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	return s.otpRepo.ConsumeAllForUser(ctx, userID)
}

// BurnOne performs a code generation and hash without touching storage. Used on
// not-found paths of enumeration-sensitive flows so both paths do comparable work.
func (s *OtpService) BurnOne() {
	code, err := generateOTPCode()
	if err != nil {
		return
	}
	salt, err := generateChallengeSalt()
	if err != nil {
		return
	}
	_ = hashOTPHex(s.serverSalt, salt, code)
}

// generateOTPCode returns a cryptographically random fixed-width numeric code.
// Leading zeros are preserved.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}

func generateChallengeSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashOTPHex returns SHA-256(serverSalt:challengeSalt:code) as hex for DB storage.
func hashOTPHex(serverSalt, challengeSalt, code string) string {
	return hex.EncodeToString(hashOTPBytes(serverSalt, challengeSalt, code))
}

func hashOTPBytes(serverSalt, challengeSalt, code string) []byte {
	data := fmt.Sprintf("%s:%s:%s", serverSalt, challengeSalt, code)
	hash := sha256.Sum256([]byte(data))
	return hash[:]
}
