// Package identity models the external identity provider boundary: a stable
// user id plus a closed role set.
package identity

import "context"

// Role is the closed set of roles the provider can issue.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWriter Role = "writer"
	RoleMember Role = "member"
)

// Normalize maps unknown role strings to the least-privileged role.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleWriter, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}

// User is the value the identity provider hands to the application.
type User struct {
	ID   string
	Name string
	Role Role
}

type contextKey struct{}

// WithUser attaches the authenticated user to a request context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// FromContext returns the authenticated user, or false when the request is
// anonymous.
func FromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(contextKey{}).(User)
	return user, ok
}
