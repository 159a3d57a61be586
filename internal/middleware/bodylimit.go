package middleware

import (
	"net/http"
	"strconv"

	"github.com/GoliathLabs/applica/internal/apierr"
)

// BodyLimit rejects requests whose declared Content-Length exceeds limit.
// The body is never read; requests without a declared length pass through.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if declared, ok := declaredLength(r); ok && limit > 0 && declared > limit {
				apierr.Write(w, r, apierr.PayloadTooLarge(declared))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func declaredLength(r *http.Request) (int64, bool) {
	if v := r.Header.Get("Content-Length"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	if r.ContentLength > 0 {
		return r.ContentLength, true
	}
	return 0, false
}
