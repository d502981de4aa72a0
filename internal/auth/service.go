package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vantage/server/internal/model"
	"github.com/vantage/server/internal/repo"
)

// Mailer dispatches an email off the request path. Implementations must never
// block; delivery failure is their own concern.
type Mailer interface {
	Enqueue(to, subject, body string)
}

// Service orchestrates the credential lifecycle: signup, verification, login,
// password recovery, and in-session credential changes. All enumeration-sensitive
// operations do comparable work whether or not the identifier exists.
type Service struct {
	users    repo.UserRepo
	sessions repo.SessionRepo
	otp      *OtpService
	mailer   Mailer
}

// NewService creates a new auth service.
func NewService(users repo.UserRepo, sessions repo.SessionRepo, otp *OtpService, mailer Mailer) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		otp:      otp,
		mailer:   mailer,
	}
}

// Profile carries optional display fields supplied at signup.
type Profile struct {
	Username *string
	Name     *string
	Phone    *string
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an unverified user, issues a signup code, and emails it.
// Returns ErrDuplicate when the email or username is taken.
func (s *Service) Signup(ctx context.Context, email, password string, profile Profile) (model.User, error) {
	email = NormalizeEmail(email)

	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.users.Create(ctx, email, hash, repo.ProfileUpdate{
		Username: profile.Username,
		Name:     profile.Name,
		Phone:    profile.Phone,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	code, err := s.otp.Issue(ctx, user.ID, model.OtpPurposeSignupVerify)
	if err != nil {
		return model.User{}, fmt.Errorf("issue signup code: %w", err)
	}
	s.mailer.Enqueue(user.Email, "Verify your email", verifyBody(code))

	return user, nil
}

// VerifySignup consumes a signup code and marks the account verified.
func (s *Service) VerifySignup(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Indistinguishable from a wrong code.
			return ErrOtpInvalid
		}
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.otp.Verify(ctx, user.ID, model.OtpPurposeSignupVerify, code); err != nil {
		return err
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// ResendOtp reissues a code for the given purpose. The caller gets a generic
// success either way; a missing user burns equivalent work instead.
func (s *Service) ResendOtp(ctx context.Context, email string, purpose model.OtpPurpose) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.otp.BurnOne()
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	code, err := s.otp.Issue(ctx, user.ID, purpose)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	switch purpose {
	case model.OtpPurposePasswordReset:
		s.mailer.Enqueue(user.Email, "Reset your password", resetBody(code))
	default:
		s.mailer.Enqueue(user.Email, "Verify your email", verifyBody(code))
	}
	return nil
}

// Login authenticates by email or username. A correct password against an
// unverified account never yields a session: a fresh signup code is issued and
// ErrNotVerified routes the client to verification. Any mismatch, including an
// unknown identifier, is ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, password string) (model.User, string, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			burnPasswordCheck(password)
			return model.User{}, "", ErrInvalidCredentials
		}
		return model.User{}, "", fmt.Errorf("load user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return model.User{}, "", ErrInvalidCredentials
	}

	if !user.IsVerified {
		// Password matched, so resending here cannot be used to probe
		// verification status without the credential.
		code, err := s.otp.Issue(ctx, user.ID, model.OtpPurposeSignupVerify)
		if err != nil {
			return model.User{}, "", fmt.Errorf("issue signup code: %w", err)
		}
		s.mailer.Enqueue(user.Email, "Verify your email", verifyBody(code))
		return model.User{}, "", ErrNotVerified
	}

	token, err := s.createSession(ctx, user)
	if err != nil {
		return model.User{}, "", err
	}
	return user, token, nil
}

// Logout revokes the session behind the token. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, HashSessionToken(token))
}

// ResolveSession returns the user bound to an active session token.
func (s *Service) ResolveSession(ctx context.Context, token string) (model.User, error) {
	session, err := s.sessions.ResolveByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, ErrNoSession
		}
		return model.User{}, fmt.Errorf("resolve session: %w", err)
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, ErrNoSession
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// ForgotPassword issues a reset code when the email exists. The response is
// generic either way and the missing-user path burns comparable work.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	return s.ResendOtp(ctx, email, model.OtpPurposePasswordReset)
}

// ResetPassword consumes a reset code and replaces the password. Every active
// challenge and session for the user is invalidated; no new session is created,
// the user must log in again.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.otp.Verify(ctx, user.ID, model.OtpPurposePasswordReset, code); err != nil {
		return err
	}

	return s.replacePassword(ctx, user, newPassword)
}

// ChangePassword verifies the old password and replaces it. All existing
// sessions are revoked; a fresh session token is minted for the caller.
func (s *Service) ChangePassword(ctx context.Context, user model.User, oldPassword, newPassword string) (string, error) {
	if !CheckPassword(user.PasswordHash, oldPassword) {
		return "", ErrInvalidCredentials
	}
	if err := s.replacePassword(ctx, user, newPassword); err != nil {
		return "", err
	}
	return s.createSession(ctx, user)
}

// ChangeEmail verifies the password and replaces the email.
func (s *Service) ChangeEmail(ctx context.Context, user model.User, newEmail, password string) error {
	if !CheckPassword(user.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	if err := s.users.UpdateEmail(ctx, user.ID, NormalizeEmail(newEmail)); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

// UpdateProfile applies a partial update of display fields.
func (s *Service) UpdateProfile(ctx context.Context, user model.User, update repo.ProfileUpdate) error {
	if err := s.users.UpdateProfile(ctx, user.ID, update); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// DeleteAccount removes the user; dependent sessions and challenges cascade.
func (s *Service) DeleteAccount(ctx context.Context, user model.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// replacePassword rehashes, stores, and invalidates all codes and sessions.
func (s *Service) replacePassword(ctx context.Context, user model.User, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.otp.InvalidateAll(ctx, user.ID); err != nil {
		return fmt.Errorf("invalidate challenges: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (s *Service) createSession(ctx context.Context, user model.User) (string, error) {
	token, tokenHash, err := NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	if _, err := s.sessions.Create(ctx, user.ID, tokenHash); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func verifyBody(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)
}

func resetBody(code string) string {
	return fmt.Sprintf("Your password reset code is %s. It expires in 5 minutes.\n\nIf you did not request this, you can ignore this email.", code)
}
