// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"pricedeck/internal/auth"
	"pricedeck/internal/store"
)

// userKey is the context key for the authenticated user.
type userKey struct{}

// Auth resolves the Bearer API key to a user and requires it to be
// valid. Account-scoped endpoints (listings, user settings) use this.
func Auth(users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(r, users)
			if !ok {
				http.Error(w, "invalid or missing API key", http.StatusUnauthorized)
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the Bearer API key when present but lets
// anonymous requests through. Report submission and polling work
// without an account; a presented-but-invalid key is still rejected so
// callers notice broken credentials instead of silently losing their
// listing associations.
func OptionalAuth(users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, ok := resolveUser(r, users)
			if !ok {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveUser(r *http.Request, users store.UserStore) (*store.User, bool) {
	authHeader := r.Header.Get("Authorization")

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	user, err := users.GetUserByAPIKeyHash(r.Context(), auth.HashKey(parts[1]))
	if err != nil {
		return nil, false
	}
	return user, true
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext extracts the authenticated user from the context.
// The second return is false for anonymous requests.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userKey{}).(*store.User)
	return user, ok
}
