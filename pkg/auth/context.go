package auth

import (
	"context"

	apperrors "recall-backend/pkg/errors"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// WithUser returns a context carrying the authenticated claims.
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// GetUserFromContext extracts the authenticated claims set by the middleware.
func GetUserFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(userContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, apperrors.NewUnauthorizedError("")
	}
	return claims, nil
}

// CurrentUserID returns the signed-in owner identifier, if any.
func CurrentUserID(ctx context.Context) (string, bool) {
	claims, err := GetUserFromContext(ctx)
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

// TokenSessionProvider resolves the signed-in owner from the claims the auth
// middleware stored on the request context.
type TokenSessionProvider struct{}

// CurrentUserID implements the session-provider contract.
func (TokenSessionProvider) CurrentUserID(ctx context.Context) (string, bool) {
	return CurrentUserID(ctx)
}
