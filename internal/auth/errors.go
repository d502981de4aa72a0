package auth

import "errors"

var (
	// ErrDuplicate is returned when an email or username is already taken.
	ErrDuplicate = errors.New("identifier already in use")
	// ErrInvalidCredentials is returned for any identifier/password mismatch.
	// The message never says which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified is returned on login against an unverified account with a
	// correct password, so the handler can route the client to verification.
	ErrNotVerified = errors.New("account not verified")
	// ErrOtpInvalid covers wrong code, expired code, consumed code, and no
	// challenge at all. The caller cannot tell those apart.
	ErrOtpInvalid = errors.New("invalid or expired code")
	// ErrNoSession is returned when a token does not resolve to an active session.
	ErrNoSession = errors.New("no active session")
)
