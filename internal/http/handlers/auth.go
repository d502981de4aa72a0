package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/vantage/server/internal/auth"
	"github.com/vantage/server/internal/mail"
	"github.com/vantage/server/internal/middleware"
	"github.com/vantage/server/internal/model"
	"github.com/vantage/server/internal/repo"
)

// CookieConfig controls how the session cookie is written.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service  *auth.Service
	cookie   CookieConfig
	validate *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *auth.Service, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookie:   cookie,
		validate: validator.New(),
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type signupRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Username *string `json:"username" validate:"omitempty,min=3,max=32"`
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
}

// HandleSignup handles POST /api/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "email and a password of at least 8 characters are required")
		return
	}

	_, err := h.service.Signup(r.Context(), req.Email, req.Password, auth.Profile{
		Username: req.Username,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			respondWithError(w, http.StatusConflict, "an account with this email or username already exists")
			return
		}
		logMasked(req.Email, "signup failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "account created, check your email for a verification code",
	})
}

type verifyOtpRequest struct {
	Email string `json:"email" validate:"required,email"`
	Otp   string `json:"otp" validate:"required,len=6,numeric"`
}

// HandleVerifyOtp handles POST /api/verify-otp
func (h *AuthHandler) HandleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "email and a 6-digit code are required")
		return
	}

	if err := h.service.VerifySignup(r.Context(), req.Email, req.Otp); err != nil {
		if errors.Is(err, auth.ErrOtpInvalid) {
			respondWithError(w, http.StatusBadRequest, "invalid or expired code")
			return
		}
		logMasked(req.Email, "verify failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "email verified, you can now log in"})
}

type resendOtpRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=signup_verify password_reset"`
}

// HandleResendOtp handles POST /api/resend-otp. The response is the same
// whether or not the email belongs to an account.
func (h *AuthHandler) HandleResendOtp(w http.ResponseWriter, r *http.Request) {
	var req resendOtpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	purpose := model.OtpPurposeSignupVerify
	if req.Purpose == string(model.OtpPurposePasswordReset) {
		purpose = model.OtpPurposePasswordReset
	}

	if err := h.service.ResendOtp(r.Context(), req.Email, purpose); err != nil {
		logMasked(req.Email, "resend failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "if an account exists for this email, a code has been sent",
	})
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// HandleLogin handles POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "invalid identifier or password")
		case errors.Is(err, auth.ErrNotVerified):
			// No session cookie. A fresh code was just emailed.
			respondJSON(w, http.StatusForbidden, map[string]any{
				"verify_required": true,
				"message":         "account not verified, a new code has been sent to your email",
			})
		default:
			logMasked(req.Identifier, "login failed", err)
			respondWithError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.setSessionCookie(w, token)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"user":    userResponseFrom(user),
	})
}

// HandleLogout handles POST /api/logout (session required)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionToken(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			log.Printf("logout: revoke session: %v", err)
		}
	}
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleCheckSession handles GET /api/check_session. Never errors; reports
// whether the cookie resolves to an active session.
func (h *AuthHandler) HandleCheckSession(w http.ResponseWriter, r *http.Request) {
	loggedIn := false
	if token := h.sessionToken(r); token != "" {
		if _, err := h.service.ResolveSession(r.Context(), token); err == nil {
			loggedIn = true
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{"logged_in": loggedIn})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgotPassword handles POST /api/forgot-password. The response shape is
// identical whether or not the account exists.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		logMasked(req.Email, "forgot-password failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "if an account exists for this email, a reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Otp         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// HandleResetPassword handles POST /api/reset-password. On success every
// existing session is revoked and the user must log in again.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "email, a 6-digit code, and a new password of at least 8 characters are required")
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.Otp, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrOtpInvalid) {
			respondWithError(w, http.StatusBadRequest, "invalid or expired code")
			return
		}
		logMasked(req.Email, "reset-password failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "password reset, please log in"})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// HandleChangePassword handles POST /api/change-password (session required).
// All sessions are revoked and a fresh cookie is issued to the caller.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "old password and a new password of at least 8 characters are required")
		return
	}

	token, err := h.service.ChangePassword(r.Context(), *user, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "invalid identifier or password")
			return
		}
		logMasked(user.Email, "change-password failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setSessionCookie(w, token)
	respondJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

type changeEmailRequest struct {
	NewEmail string `json:"new_email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleChangeEmail handles POST /api/change-email (session required)
func (h *AuthHandler) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changeEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "a valid new email and your password are required")
		return
	}

	if err := h.service.ChangeEmail(r.Context(), *user, req.NewEmail, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "invalid identifier or password")
		case errors.Is(err, auth.ErrDuplicate):
			respondWithError(w, http.StatusConflict, "an account with this email already exists")
		default:
			logMasked(user.Email, "change-email failed", err)
			respondWithError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "email changed"})
}

type updateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Username *string `json:"username" validate:"omitempty,min=3,max=32"`
}

// HandleUpdateProfile handles PATCH /api/profile (session required)
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid profile fields")
		return
	}

	err := h.service.UpdateProfile(r.Context(), *user, repo.ProfileUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Username: req.Username,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			respondWithError(w, http.StatusConflict, "username already taken")
			return
		}
		logMasked(user.Email, "update-profile failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

// HandleDeleteAccount handles DELETE /api/account (session required)
func (h *AuthHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.DeleteAccount(r.Context(), *user); err != nil {
		logMasked(user.Email, "delete-account failed", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// HandleMe handles GET /api/me (session required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, userResponseFrom(*user))
}

// userResponse is the user object in API responses
type userResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Username   *string `json:"username,omitempty"`
	Name       *string `json:"name,omitempty"`
	IsVerified bool    `json:"is_verified"`
}

func userResponseFrom(user model.User) userResponse {
	return userResponse{
		ID:         user.ID.String(),
		Email:      user.Email,
		Username:   user.Username,
		Name:       user.Name,
		IsVerified: user.IsVerified,
	}
}

// logMasked logs a failure with the identifier masked.
func logMasked(identifier, msg string, err error) {
	log.Printf("%s: %s: %v", mail.MaskEmail(identifier), msg, err)
}
