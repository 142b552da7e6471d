package auth

import (
	"context"
	"testing"

	"github.com/medstock-labs/medstock/internal/config"
)

// TestStaticTokenAuthenticator_ValidateToken checks token lookup.
func TestStaticTokenAuthenticator_ValidateToken(t *testing.T) {
	a := NewStaticTokenAuthenticator()
	a.RegisterToken("secret", &User{Name: "alice", Roles: []string{RolePharmacist}})

	user, err := a.ValidateToken(context.Background(), "secret")
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("name = %q, want alice", user.Name)
	}

	if _, err := a.ValidateToken(context.Background(), "wrong"); err == nil {
		t.Error("expected error for unknown token")
	}
	if _, err := a.ValidateToken(context.Background(), ""); err == nil {
		t.Error("expected error for empty token")
	}
}

// TestFromConfig checks authenticator construction from configuration.
func TestFromConfig(t *testing.T) {
	a := FromConfig(config.AuthConfig{
		Token: "admin-token",
		Users: []config.UserToken{
			{Token: "t1", Name: "bob", Roles: []string{RolePharmacist}},
			{Token: "t2", Name: "carol"},
			{Name: "no-token"},
		},
	})

	admin, err := a.ValidateToken(context.Background(), "admin-token")
	if err != nil {
		t.Fatalf("admin token rejected: %v", err)
	}
	if !admin.HasRole(RoleAdmin) {
		t.Error("top-level token should map to an admin user")
	}

	bob, err := a.ValidateToken(context.Background(), "t1")
	if err != nil {
		t.Fatalf("user token rejected: %v", err)
	}
	if !bob.CanWrite() {
		t.Error("pharmacist should be able to write")
	}

	carol, err := a.ValidateToken(context.Background(), "t2")
	if err != nil {
		t.Fatalf("user token rejected: %v", err)
	}
	if !carol.HasRole(RoleViewer) {
		t.Errorf("roles = %v, want viewer fallback", carol.Roles)
	}
	if carol.CanWrite() {
		t.Error("viewer should not be able to write")
	}
}

// TestUserContext checks the request-scoped user round trip.
func TestUserContext(t *testing.T) {
	if UserFromContext(context.Background()) != nil {
		t.Error("empty context should have no user")
	}

	user := &User{Name: "alice"}
	ctx := ContextWithUser(context.Background(), user)
	if got := UserFromContext(ctx); got != user {
		t.Errorf("got %+v", got)
	}
}
