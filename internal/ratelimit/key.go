package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests without any client header.
const UnknownClient = "unknown"

var clientHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// ClientKey identifies the caller from proxy headers: the first element of
// X-Forwarded-For, then X-Real-IP, then CF-Connecting-IP. Requests carrying
// none of them share the UnknownClient bucket.
func ClientKey(r *http.Request) string {
	for _, h := range clientHeaders {
		v := r.Header.Get(h)
		if h == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return UnknownClient
}

// CounterKey scopes a client key to one rule so each route has its own window.
func CounterKey(rule Rule, client string) string {
	return rule.String() + "|" + client
}
