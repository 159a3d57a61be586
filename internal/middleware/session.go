package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/GoliathLabs/applica/internal/apierr"
	"github.com/GoliathLabs/applica/internal/auth"
)

// bearerTokenStrings extracts "Authorization: Bearer <token>".
var bearerTokenStrings = [][]options.TokenStringOption{{}}

// Session verifies the bearer token on every request and stores its claims
// on the context. A missing issuer or secret fails closed with 500 so a
// configuration error never becomes an authentication bypass.
func Session(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !issuer.Configured() {
				apierr.Write(w, r, apierr.Misconfigured(auth.ErrMisconfigured))
				return
			}

			token, err := oidctoken.GetTokenString(r.Header.Get, bearerTokenStrings)
			if err != nil || strings.TrimSpace(token) == "" {
				if err == nil {
					err = errors.New("empty bearer token")
				}
				apierr.Write(w, r, apierr.TokenInvalid(fmt.Errorf("extract bearer token: %w", err)))
				return
			}

			claims, err := issuer.Verify(strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, auth.ErrMisconfigured) {
					apierr.Write(w, r, apierr.Misconfigured(err))
					return
				}
				apierr.Write(w, r, apierr.TokenInvalid(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
