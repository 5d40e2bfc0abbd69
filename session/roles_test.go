package session

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestDeriveIsAdmin_FromTokenRoles(t *testing.T) {
	claims := jwt.MapClaims{"roles": []any{"ROLE_ADMIN"}}
	assert.True(t, deriveIsAdmin(claims, nil))
}

func TestDeriveIsAdmin_ScopeWithoutAdmin(t *testing.T) {
	claims := jwt.MapClaims{"scope": "read write"}
	assert.False(t, deriveIsAdmin(claims, nil))
}

func TestDeriveIsAdmin_ScopeWithAdmin(t *testing.T) {
	claims := jwt.MapClaims{"scope": "read role_admin write"}
	assert.True(t, deriveIsAdmin(claims, nil))
}

func TestDeriveIsAdmin_LowercaseProfileRole(t *testing.T) {
	profile := &Profile{Roles: []string{"admin"}}
	assert.True(t, deriveIsAdmin(jwt.MapClaims{}, profile))
}

func TestDeriveIsAdmin_EitherSourceMayAssert(t *testing.T) {
	// Claims say admin, profile does not.
	claims := jwt.MapClaims{"authorities": []any{"role_Admin"}}
	profile := &Profile{Roles: []string{"USER"}}
	assert.True(t, deriveIsAdmin(claims, profile))

	// Profile says admin via permissions, claims do not.
	claims = jwt.MapClaims{"roles": []any{"ROLE_USER"}}
	profile = &Profile{Permissions: []string{"ROLE_ADMIN"}}
	assert.True(t, deriveIsAdmin(claims, profile))
}

func TestDeriveIsAdmin_NonAdmin(t *testing.T) {
	claims := jwt.MapClaims{"roles": []any{"ROLE_USER", "ROLE_SUPPORT"}}
	profile := &Profile{Roles: []string{"user"}, Authorities: []string{"orders:read"}}
	assert.False(t, deriveIsAdmin(claims, profile))
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, "ADMIN", normalizeRole("role_admin"))
	assert.Equal(t, "ADMIN", normalizeRole("ROLE_ADMIN"))
	assert.Equal(t, "ADMIN", normalizeRole(" admin "))
	assert.Equal(t, "USER", normalizeRole("ROLE_USER"))
}
