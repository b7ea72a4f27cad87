// Package auth establishes caller identity for HTTP requests. Tokens are
// minted by the external identity provider; this package only validates
// them and exposes the authenticated user id and role to handlers.
package auth

import "context"

// Role values carried in identity tokens.
const (
	RoleAdmin    = "Admin"
	RoleStandard = "Standard"
)

// UserContext is the authenticated caller.
type UserContext struct {
	UserID   string
	Username string
	Role     string
	AuthType string // "jwt" or "apikey"
}

// IsAdmin reports whether the caller holds the admin role.
func (u *UserContext) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type contextKey string

const userContextKey contextKey = "timetrack-user"

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user, or nil when the request
// did not pass authentication middleware.
func UserFromContext(ctx context.Context) *UserContext {
	u, _ := ctx.Value(userContextKey).(*UserContext)
	return u
}
