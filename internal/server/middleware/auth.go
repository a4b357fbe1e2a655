// Package middleware authenticates API requests and attaches the caller to
// the request context.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	userIDKey ContextKey = "userID"
	userKey   ContextKey = "user"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (UserIDGetter, error)
}

// UserIDGetter exposes the subject of validated token claims.
type UserIDGetter interface {
	GetUserID() uuid.UUID
}

// UserLookup resolves a user id; it returns nil, nil for unknown users.
type UserLookup func(ctx context.Context, id uuid.UUID) (*types.User, error)

// AuthMiddleware validates the bearer token and stores the user ID in the
// request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.GetUserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadUser resolves the authenticated user ID to a directory user. Tokens for
// users that no longer exist are rejected. Must run after AuthMiddleware.
func LoadUser(lookup UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := GetUserID(r)
			if err != nil {
				unauthorized(w, "missing bearer token")
				return
			}
			user, err := lookup(r.Context(), id)
			if err != nil {
				logger.Error("failed to load caller", slog.String("user_id", id.String()), slog.Any("error", err))
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if user == nil {
				unauthorized(w, "unknown user")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	userID, ok := r.Context().Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user ID not found in request context")
	}
	return userID, nil
}

// GetUser returns the caller attached by LoadUser.
func GetUser(r *http.Request) (*types.User, bool) {
	user, ok := r.Context().Value(userKey).(*types.User)
	return user, ok && user != nil
}

// WithUser returns a copy of ctx carrying user, for handler tests.
func WithUser(ctx context.Context, user *types.User) context.Context {
	ctx = context.WithValue(ctx, userIDKey, user.ID)
	return context.WithValue(ctx, userKey, user)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
