package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vantage/server/internal/auth"
	"github.com/vantage/server/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// SessionResolver turns a raw cookie token into the authenticated user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (model.User, error)
}

// SessionAuth validates the session cookie, loads the bound user, and attaches
// it to the request context as a typed principal. Protected handlers take the
// user from the context instead of re-reading ambient request state.
func SessionAuth(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := resolver.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, auth.ErrNoSession) {
					respondWithError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				respondWithError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the user attached to the request context (set by SessionAuth).
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
