package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// sessionUserContextKey is the context key for the authenticated user
	sessionUserContextKey contextKey = "session_user"
)

// Middleware validates the session cookie and injects the session user
// into the request context. An invalid session clears the cookie and the
// request continues unauthenticated.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetSessionCookie(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid session token")
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionUserContextKey, claims.User())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is middleware that requires authentication
// Returns 401 if the caller has no valid session
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == uuid.Nil {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSessionUser retrieves the session user from the request context.
// The returned bool is false when the request is unauthenticated.
func GetSessionUser(ctx context.Context) (SessionUser, bool) {
	user, ok := ctx.Value(sessionUserContextKey).(SessionUser)
	return user, ok
}

// GetUserID retrieves the authenticated user ID from the request context
// Returns uuid.Nil if no user is authenticated
func GetUserID(ctx context.Context) uuid.UUID {
	user, ok := GetSessionUser(ctx)
	if !ok {
		return uuid.Nil
	}
	return user.ID
}

// ContextWithSessionUser returns a context carrying the given session user.
// Used by tests to simulate authenticated requests.
func ContextWithSessionUser(ctx context.Context, user SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserContextKey, user)
}
