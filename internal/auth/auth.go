// Package auth provides authentication for the medstock server.
// Static tokens from configuration map to named users with roles.
package auth

import (
	"context"
	"sync"

	"github.com/medstock-labs/medstock/internal/config"
	"github.com/medstock-labs/medstock/internal/errors"
)

// Role names used in token configuration.
const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleViewer     = "viewer"
)

// User is an authenticated caller.
type User struct {
	// Name is the display name of the user.
	Name string `json:"name"`

	// Roles are the roles assigned to this user.
	Roles []string `json:"roles"`
}

// HasRole checks if the user has the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanWrite reports whether the user may create, modify, or dispense stock.
// Viewers are read-only.
func (u *User) CanWrite() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RolePharmacist)
}

// Authenticator validates tokens and returns user information.
type Authenticator interface {
	// ValidateToken validates a token and returns the authenticated user.
	// Returns an error if the token is invalid.
	ValidateToken(ctx context.Context, token string) (*User, error)
}

// StaticTokenAuthenticator implements Authenticator using static tokens from
// configuration.
type StaticTokenAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]*User
}

// NewStaticTokenAuthenticator creates an empty static token authenticator.
func NewStaticTokenAuthenticator() *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{
		tokens: make(map[string]*User),
	}
}

// FromConfig builds an authenticator from the auth configuration. The
// top-level token, when set, maps to an admin user.
func FromConfig(cfg config.AuthConfig) *StaticTokenAuthenticator {
	a := NewStaticTokenAuthenticator()
	if cfg.Token != "" {
		a.RegisterToken(cfg.Token, &User{Name: "admin", Roles: []string{RoleAdmin}})
	}
	for _, u := range cfg.Users {
		if u.Token == "" {
			continue
		}
		roles := u.Roles
		if len(roles) == 0 {
			roles = []string{RoleViewer}
		}
		a.RegisterToken(u.Token, &User{Name: u.Name, Roles: roles})
	}
	return a
}

// RegisterToken adds a token-to-user mapping.
func (a *StaticTokenAuthenticator) RegisterToken(token string, user *User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token] = user
}

// ValidateToken validates a static token.
func (a *StaticTokenAuthenticator) ValidateToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, errors.NewAuthFailed("token required")
	}

	a.mu.RLock()
	user, ok := a.tokens[token]
	a.mu.RUnlock()

	if !ok {
		return nil, errors.NewAuthFailed("invalid token")
	}
	return user, nil
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "medstock_user"

// ContextWithUser returns a new context with the user attached.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the user from the context.
// Returns nil if no user is attached.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}
