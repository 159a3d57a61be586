package telemetry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoliathLabs/applica/internal/config"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	ctx := context.Background()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.HTTPRequest(ctx, "GET", "/health", 200, time.Millisecond)
		m.Login(ctx, OutcomeRejected, time.Millisecond)
		m.RateLimitDecision(ctx, "POST /api/auth/login", false)
		m.RateLimitSweep(ctx, 4)
	})
}

func TestMetricsOnGlobalProvider(t *testing.T) {
	ctx := context.Background()
	m, err := NewMetrics()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.HTTPRequest(ctx, "POST", "/api/auth/login", 503, 12*time.Millisecond)
		m.Login(ctx, OutcomeAuthenticated, 40*time.Millisecond)
		m.RateLimitDecision(ctx, "POST /api/auth/login", true)
		m.RateLimitSweep(ctx, 2)
	})
}

func TestLoginSpan(t *testing.T) {
	_, span := StartLogin(context.Background(), "alice")
	assert.NotPanics(t, func() {
		LoginStep(span, "lookup")
		EndLogin(span, OutcomeRejected, errors.New("user not found"))
	})
}

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	shutdown, err := Setup(context.Background(), config.ObservabilityConfig{}, "test", logger)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupRejectsGRPC(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := Setup(context.Background(), config.ObservabilityConfig{
		OTLPEndpoint: "localhost:4318",
		OTLPProtocol: "grpc",
	}, "test", logger)
	assert.Error(t, err)
}
