package dreamlog

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer token of the signed in user. An empty token
// means there is no session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed session token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// sessionClaims reads the session token without checking its signature.
// The API verifies it; the client only needs the subject and expiry.
func sessionClaims(token string) (*jwt.RegisteredClaims, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func usable(claims *jwt.RegisteredClaims, now time.Time) bool {
	return claims.ExpiresAt == nil || claims.ExpiresAt.After(now)
}
