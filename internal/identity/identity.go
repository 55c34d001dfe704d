// Package identity carries the resolved user through a request context.
package identity

import (
	"context"

	"github.com/claude/freecoach/internal/workout"
)

type contextKey int

const (
	userIDKey contextKey = iota
	userInfoKey
)

// User is the display identity of a signed-in student.
type User struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// WithUser returns a context carrying the user ID and profile.
func WithUser(ctx context.Context, userID int, u User) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userInfoKey, u)
}

// WithUserID returns a context carrying only the user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the user ID set by WithUser or WithUserID.
func UserID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok && id > 0
}

// UserInfo extracts the profile set by WithUser.
func UserInfo(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userInfoKey).(User)
	return u, ok
}

// Context resolves the current user from the context passed to each call.
type Context struct{}

var _ workout.Identity = Context{}

// CurrentUserID implements workout.Identity.
func (Context) CurrentUserID(ctx context.Context) (int, error) {
	id, ok := UserID(ctx)
	if !ok {
		return 0, workout.ErrUnauthenticated
	}
	return id, nil
}
