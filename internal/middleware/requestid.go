package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/GoliathLabs/applica/internal/logging"
)

// DefaultRequestIDHeader is used when no header name is configured.
const DefaultRequestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

// RequestID echoes the inbound correlation header or generates a
// time-ordered id, writes it on the response and installs a request-scoped
// log entry carrying it.
func RequestID(header string, logger *logrus.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	if logger == nil {
		logger = logging.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" {
				id = newRequestID()
			}
			w.Header().Set(header, id)

			ctx := context.WithValue(r.Context(), requestIDContextKey{}, id)
			ctx = logging.WithEntry(ctx, logger.WithField(logging.FieldRequestID, id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the correlation id assigned to the request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// newRequestID returns a UUIDv7: a millisecond timestamp followed by random bits.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
