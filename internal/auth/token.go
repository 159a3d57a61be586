package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"
)

var (
	// ErrMisconfigured is returned when no signing secret is configured.
	ErrMisconfigured = errors.New("session signing secret is not configured")

	// ErrInvalidToken wraps every token verification failure.
	ErrInvalidToken = errors.New("invalid session token")
)

// TokenIssuer signs and verifies HS256 session tokens with a server-held secret.
type TokenIssuer struct {
	secret []byte
	clock  abtime.AbstractTime
	parser *jwt.Parser
}

// NewTokenIssuer returns an issuer for secret. A nil clock uses real time.
// An empty secret yields an issuer whose every call fails with ErrMisconfigured.
func NewTokenIssuer(secret string, clock abtime.AbstractTime) *TokenIssuer {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		clock:  clock,
	}
	t.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	return t
}

// Configured reports whether a signing secret is present. Safe on a nil receiver.
func (t *TokenIssuer) Configured() bool {
	return t != nil && len(t.secret) > 0
}

func (t *TokenIssuer) now() time.Time {
	return t.clock.Now()
}

// Issue signs a token for subject valid for SessionTTL from now.
func (t *TokenIssuer) Issue(subject, displayName string) (SessionClaims, string, error) {
	if !t.Configured() {
		return SessionClaims{}, "", ErrMisconfigured
	}

	issuedAt := t.now().Truncate(time.Second)
	claims := &tokenClaims{
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(SessionTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return SessionClaims{}, "", fmt.Errorf("sign session token: %w", err)
	}
	return *claims.session(), signed, nil
}

// Verify checks the signature, algorithm and expiry of token and returns its claims.
// A token is valid strictly before its expiry instant.
func (t *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	if !t.Configured() {
		return nil, ErrMisconfigured
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &tokenClaims{}
	_, err := t.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.session(), nil
}
