package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
)

func TestIssueSetsFixedLifetime(t *testing.T) {
	clock := abtime.NewManualAtTime(time.Unix(1_700_000_000, 500_000_000))
	issuer := NewTokenIssuer("test-secret", clock)

	claims, token, err := issuer.Issue("alice", "Alice Example")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "Alice Example", claims.DisplayName)
	assert.Equal(t, int64(1_700_000_000), claims.IssuedAt)
	assert.Equal(t, int64(1800), claims.ExpiresAt-claims.IssuedAt)

	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, claims, *verified)
}

func TestVerifyExpiry(t *testing.T) {
	clock := abtime.NewManualAtTime(time.Unix(1_700_000_000, 0))
	issuer := NewTokenIssuer("test-secret", clock)

	_, token, err := issuer.Issue("alice", "Alice")
	require.NoError(t, err)

	clock.Advance(SessionTTL - time.Second)
	_, err = issuer.Verify(token)
	require.NoError(t, err, "token must be valid until its expiry instant")

	clock.Advance(2 * time.Second)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	clock := abtime.NewManualAtTime(time.Unix(1_700_000_000, 0))
	issuer := NewTokenIssuer("test-secret", clock)
	_, token, err := issuer.Issue("alice", "Alice")
	require.NoError(t, err)

	other := NewTokenIssuer("another-secret", clock)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = issuer.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken, "bad signature")

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken, "malformed")

	_, err = issuer.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken, "empty")
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	clock := abtime.NewManualAtTime(time.Unix(1_700_000_000, 0))
	issuer := NewTokenIssuer("test-secret", clock)

	claims := &tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(clock.Now()),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(SessionTTL)),
	}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = issuer.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	clock := abtime.NewManualAtTime(time.Unix(1_700_000_000, 0))
	issuer := NewTokenIssuer("test-secret", clock)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMissingSecretFailsClosed(t *testing.T) {
	issuer := NewTokenIssuer("", nil)
	assert.False(t, issuer.Configured())

	_, _, err := issuer.Issue("alice", "Alice")
	assert.ErrorIs(t, err, ErrMisconfigured)

	_, err = issuer.Verify("anything")
	assert.ErrorIs(t, err, ErrMisconfigured)

	var nilIssuer *TokenIssuer
	assert.False(t, nilIssuer.Configured())
}
