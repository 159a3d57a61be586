// Package logging wires logrus for the gateway and carries per-request log
// entries on the context so every decision point logs the correlation id.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Field names shared by all components.
const (
	FieldRequestID = "request_id"
	FieldUsername  = "username"
	FieldComponent = "component"
)

type entryContextKey struct{}

var base = New(os.Stderr, false)

// New builds a JSON logger writing to out.
func New(out io.Writer, debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// SetDefault replaces the process-wide logger used when a context carries no entry.
func SetDefault(logger *logrus.Logger) {
	if logger != nil {
		base = logger
	}
}

// Default returns the process-wide logger.
func Default() *logrus.Logger {
	return base
}

// WithEntry stores a request-scoped entry on the context.
func WithEntry(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, entryContextKey{}, entry)
}

// FromContext returns the request-scoped entry, or an entry on the default
// logger when none was installed.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(entryContextKey{}).(*logrus.Entry); ok && entry != nil {
			return entry
		}
	}
	return logrus.NewEntry(base)
}
