// Package apierr defines the closed set of failures the gateway exposes to
// clients and writes them as JSON. Anything that is not an *Error collapses to
// a generic 500; the cause is logged, never echoed.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/GoliathLabs/applica/internal/logging"
)

// Kind tags an Error with its category in the external taxonomy.
type Kind int

const (
	KindUnexpected Kind = iota
	KindDirectoryUnavailable
	KindInvalidCredentials
	KindForbidden
	KindTokenInvalid
	KindPayloadTooLarge
	KindRateLimited
	KindMisconfigured
	KindBadRequest
	KindNotFound
	KindMethodNotAllowed
)

// Generic client-facing messages.
const (
	MsgInternal           = "Internal Server Error"
	MsgUnavailable        = "Authentication service unavailable"
	MsgInvalidCredentials = "Username or password is incorrect"
	MsgForbidden          = "Access denied. Only field leaders can login."
	MsgUnauthorized       = "Unauthorized"
	MsgPayloadTooLarge    = "Payload too large"
	MsgTooManyRequests    = "Too many requests"
	MsgMisconfigured      = "Server misconfigured"
	MsgNotFound           = "Not Found"
	MsgMethodNotAllowed   = "Method Not Allowed"
	MsgInvalidRequest     = "Invalid request"
)

// String returns the category name used in logs.
func (k Kind) String() string {
	switch k {
	case KindDirectoryUnavailable:
		return "directory_unavailable"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindForbidden:
		return "forbidden"
	case KindTokenInvalid:
		return "token_invalid"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindRateLimited:
		return "rate_limited"
	case KindMisconfigured:
		return "misconfigured"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindUnexpected:
		return "unexpected"
	}
	return "unexpected"
}

// Status maps the category to its HTTP status.
func (k Kind) Status() int {
	switch k {
	case KindDirectoryUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidCredentials, KindTokenInvalid:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindMisconfigured, KindUnexpected:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error is a structured application error. Message is sent to the client
// verbatim; Err is the internal cause and is only ever logged.
type Error struct {
	Kind       Kind
	Message    string
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// New builds an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func DirectoryUnavailable(cause error) *Error {
	return New(KindDirectoryUnavailable, MsgUnavailable, cause)
}

func InvalidCredentials(cause error) *Error {
	return New(KindInvalidCredentials, MsgInvalidCredentials, cause)
}

func Forbidden(cause error) *Error {
	return New(KindForbidden, MsgForbidden, cause)
}

func TokenInvalid(cause error) *Error {
	return New(KindTokenInvalid, MsgUnauthorized, cause)
}

func PayloadTooLarge(declared int64) *Error {
	return New(KindPayloadTooLarge, MsgPayloadTooLarge, fmt.Errorf("declared content length %d", declared))
}

// RateLimited carries the wait before the client's window resets.
func RateLimited(retryAfter time.Duration) *Error {
	e := New(KindRateLimited, MsgTooManyRequests, nil)
	e.RetryAfter = retryAfter
	return e
}

func Misconfigured(cause error) *Error {
	return New(KindMisconfigured, MsgMisconfigured, cause)
}

func BadRequest(message string, cause error) *Error {
	if message == "" {
		message = MsgInvalidRequest
	}
	return New(KindBadRequest, message, cause)
}

func NotFound() *Error {
	return New(KindNotFound, MsgNotFound, nil)
}

func MethodNotAllowed() *Error {
	return New(KindMethodNotAllowed, MsgMethodNotAllowed, nil)
}

// From classifies err. Structured errors are returned as-is; everything else
// becomes KindUnexpected with the generic message.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr
	}
	return New(KindUnexpected, MsgInternal, err)
}

// Response is the JSON body of every error response.
type Response struct {
	Message string `json:"message"`
}

// Write normalizes err and writes it to w. 5xx causes are logged at error
// level with the request's correlation id; others are logged at debug.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := From(err)
	status := apiErr.Status()

	entry := logging.FromContext(r.Context()).WithField("error_kind", apiErr.Kind.String())
	if apiErr.Err != nil {
		entry = entry.WithError(apiErr.Err)
	}
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if apiErr.Kind == KindRateLimited {
		w.Header().Set("Retry-After", strconv.FormatInt(RetryAfterSeconds(apiErr.RetryAfter), 10))
	}
	WriteJSON(w, status, Response{Message: apiErr.Message})
}

// RetryAfterSeconds rounds a wait up to whole seconds, with a floor of one.
func RetryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
