package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// userIDContextKey is the context key for the authenticated user ID.
const userIDContextKey contextKey = "user_id"

// ContextWithUserID adds the authenticated user ID to the context.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext retrieves the authenticated user ID from the context.
// The second return value reports whether a user is authenticated.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}
