package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// decodeClaims extracts the claims of a JWT without verifying its
// signature. The client treats the token as opaque identity data; the
// backend is the verifier.
func decodeClaims(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// claimsExpired reports whether the claims carry an exp in the past.
// Claims without exp are treated as unexpired.
func claimsExpired(claims jwt.MapClaims, now time.Time) bool {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
