package tokenfile

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry extracts the exp claim from a JWT access token without
// verifying its signature. The client never holds the signing key; the
// value is informational (status display, expiry logging). Opaque or
// malformed tokens yield the zero time.
func AccessTokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
