package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the fixed lifetime of an issued session token.
const SessionTTL = 1800 * time.Second

// SessionClaims is the identity carried by a session token. Timestamps are
// Unix seconds.
type SessionClaims struct {
	Subject     string `json:"sub"`
	DisplayName string `json:"name"`
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
}

// Expires returns the expiry instant.
func (c SessionClaims) Expires() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// tokenClaims is the signed JWT payload.
type tokenClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) session() *SessionClaims {
	out := &SessionClaims{
		Subject:     c.Subject,
		DisplayName: c.Name,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	return out
}
