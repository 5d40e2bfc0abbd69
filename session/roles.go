package session

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const adminRole = "ADMIN"

// normalizeRole uppercases a role-like value and strips a leading
// ROLE_ prefix, so "role_admin", "ROLE_ADMIN" and "admin" all
// normalize to "ADMIN".
func normalizeRole(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	return strings.TrimPrefix(v, "ROLE_")
}

// rolesFromClaims collects role-like values from token claims: the
// roles or authorities arrays, or a space-delimited scope string.
func rolesFromClaims(claims jwt.MapClaims) []string {
	var roles []string
	roles = append(roles, stringSlice(claims["roles"])...)
	roles = append(roles, stringSlice(claims["authorities"])...)
	if scope := claimString(claims, "scope"); scope != "" {
		roles = append(roles, strings.Fields(scope)...)
	}
	return roles
}

// rolesFromProfile collects role-like values from the fetched profile.
func rolesFromProfile(profile *Profile) []string {
	if profile == nil {
		return nil
	}
	var roles []string
	roles = append(roles, profile.Roles...)
	roles = append(roles, profile.Authorities...)
	roles = append(roles, profile.Permissions...)
	return roles
}

// deriveIsAdmin reports whether any role-like value from token claims
// or profile normalizes to ADMIN. Either source may assert admin.
func deriveIsAdmin(claims jwt.MapClaims, profile *Profile) bool {
	for _, r := range rolesFromClaims(claims) {
		if normalizeRole(r) == adminRole {
			return true
		}
	}
	for _, r := range rolesFromProfile(profile) {
		if normalizeRole(r) == adminRole {
			return true
		}
	}
	return false
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
