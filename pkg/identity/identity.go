// Package identity resolves the acting user for audit attribution.
package identity

import "context"

// User identifies who performed a versioning operation.
type User struct {
	Email          string `json:"email"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// Identity resolves the current user from the request context.
type Identity interface {
	CurrentUser(ctx context.Context) (*User, error)
}

type contextKey struct{}

// WithUser stores the user on the context, typically done by transport
// middleware after authentication.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// ContextIdentity reads the user placed on the context by WithUser and
// falls back to a configured default when absent.
type ContextIdentity struct {
	Fallback User
}

// NewContextIdentity creates an identity resolver with the given
// fallback user.
func NewContextIdentity(fallback User) *ContextIdentity {
	return &ContextIdentity{Fallback: fallback}
}

// CurrentUser returns the context user or the fallback. It never fails;
// attribution is best effort.
func (i *ContextIdentity) CurrentUser(ctx context.Context) (*User, error) {
	if user, ok := ctx.Value(contextKey{}).(*User); ok && user != nil {
		return user, nil
	}

	fallback := i.Fallback

	return &fallback, nil
}
