package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindDirectoryUnavailable: http.StatusServiceUnavailable,
		KindInvalidCredentials:   http.StatusUnauthorized,
		KindForbidden:            http.StatusForbidden,
		KindTokenInvalid:         http.StatusUnauthorized,
		KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
		KindRateLimited:          http.StatusTooManyRequests,
		KindMisconfigured:        http.StatusInternalServerError,
		KindUnexpected:           http.StatusInternalServerError,
		KindBadRequest:           http.StatusBadRequest,
		KindNotFound:             http.StatusNotFound,
		KindMethodNotAllowed:     http.StatusMethodNotAllowed,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestWrite_StructuredErrorPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	Write(rec, req, fmt.Errorf("login: %w", Forbidden(errors.New("not in leader group"))))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, MsgForbidden, body.Message)
	assert.NotContains(t, rec.Body.String(), "leader group")
}

func TestWrite_UnknownErrorIsSanitized(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Write(rec, req, errors.New("LDAP Result Code 52 \"Unavailable\": socket closed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal Server Error"}`, rec.Body.String())
}

func TestWrite_RateLimitedSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/applications", nil)

	Write(rec, req, RateLimited(41500*time.Millisecond))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, int64(60), RetryAfterSeconds(time.Minute))
	assert.Equal(t, int64(1), RetryAfterSeconds(10*time.Millisecond))
	assert.Equal(t, int64(1), RetryAfterSeconds(0))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("bind timeout")
	err := DirectoryUnavailable(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindDirectoryUnavailable, From(err).Kind)
	assert.Equal(t, KindUnexpected, From(cause).Kind)
}
