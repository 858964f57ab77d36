// Package identity resolves the user behind an incoming connection.
package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Provider maps a bearer credential to a user ID.
type Provider interface {
	// Authenticate validates the given token and returns the user ID it
	// identifies. A failed validation returns ErrUnauthenticated.
	Authenticate(token string) (string, error)
}

// JWTProvider validates HS256-signed tokens and uses the subject claim
// as the user ID.
type JWTProvider struct {
	secret []byte
}

// NewJWTProvider creates a provider verifying tokens against the given
// shared secret.
func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

// Authenticate parses and verifies the token, returning its subject.
func (p *JWTProvider) Authenticate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUnauthenticated)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrUnauthenticated)
	}
	return sub, nil
}

// StaticProvider accepts any non-empty token and treats it as the user
// ID directly. Intended for local development and the stream simulator.
type StaticProvider struct{}

// Authenticate returns the token itself as the user ID.
func (StaticProvider) Authenticate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUnauthenticated)
	}
	return token, nil
}
