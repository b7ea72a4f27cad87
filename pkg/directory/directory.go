// Package directory provides read-only access to the user records owned by
// the external identity provider. The service never writes here; it only
// resolves ids to display names for reports and the admin status surface.
package directory

import "context"

// Role values mirrored from the identity provider.
const (
	RoleAdmin    = "Admin"
	RoleStandard = "Standard"
)

// User is the identity provider's view of a user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Directory defines read-only user lookup.
type Directory interface {
	// Get retrieves a user by id. Returns nil, nil when unknown.
	Get(ctx context.Context, id string) (*User, error)

	// List returns all users ordered by username.
	List(ctx context.Context) ([]*User, error)
}
