package handlers

import (
	"context"

	"github.com/confabhq/confab/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// SetUserInContext stores the verified caller identity for downstream
// handlers.
func SetUserInContext(ctx context.Context, user *models.Identity) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the verified caller identity, or nil when the
// request was not authenticated.
func GetUserFromContext(ctx context.Context) *models.Identity {
	user, ok := ctx.Value(userContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return user
}
