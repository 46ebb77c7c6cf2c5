package auth

import (
	"context"

	"github.com/fxgate/fxgate/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const callerContextKey contextKey = "caller"

// ContextWithCaller stores the resolved user in the context.
func ContextWithCaller(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, callerContextKey, user)
}

// CallerFromContext returns the resolved user or nil for anonymous requests.
func CallerFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(callerContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// MustCallerFromContext panics when no caller was resolved.
// Use only behind RequireCaller.
func MustCallerFromContext(ctx context.Context) *model.User {
	user := CallerFromContext(ctx)
	if user == nil {
		panic("caller not found - ensure RequireCaller middleware is applied")
	}
	return user
}

// UserIDFromContext returns the caller ID, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if user := CallerFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}
