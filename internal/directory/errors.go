package directory

import "errors"

var (
	// ErrUnavailable is the only error BindAsAdmin returns. Its message is
	// deliberately constant; the underlying cause is logged, never returned.
	ErrUnavailable = errors.New("LDAP unavailable")

	// ErrTimeout is returned when an operation does not finish within the
	// configured operation timeout.
	ErrTimeout = errors.New("ldap operation timed out")

	// ErrSessionReleased is returned when a released session is used again.
	ErrSessionReleased = errors.New("ldap session already released")
)
