package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/GoliathLabs/applica"

// Login outcomes, used as the outcome attribute on login metrics and spans.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomeForbidden     = "forbidden"
	OutcomeUnavailable   = "unavailable"
	OutcomeError         = "error"
)

// latency buckets in milliseconds
var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Metrics holds every instrument the gateway records. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests       metric.Int64Counter
	requestLatency metric.Float64Histogram
	logins         metric.Int64Counter
	loginLatency   metric.Float64Histogram
	limitDecisions metric.Int64Counter
	limitSwept     metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("ms"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		errs = append(errs, err)
		return h
	}

	m.requests = counter("gateway.http.requests", "HTTP requests by route and status", "{request}")
	m.requestLatency = histogram("gateway.http.duration", "HTTP request latency")
	m.logins = counter("gateway.login.attempts", "Login attempts by terminal outcome", "{attempt}")
	m.loginLatency = histogram("gateway.login.duration", "Login latency including directory round trips")
	m.limitDecisions = counter("gateway.ratelimit.decisions", "Counted requests by rate limit decision", "{request}")
	m.limitSwept = counter("gateway.ratelimit.swept", "Expired rate limit windows removed", "{entry}")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.String("http.response.status_class", strconv.Itoa(status/100)+"xx"),
		attribute.Int("http.response.status_code", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestLatency.Record(ctx, millis(elapsed), attrs)
}

// Login records a finished login attempt.
func (m *Metrics) Login(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrLoginOutcome, outcome))
	m.logins.Add(ctx, 1, attrs)
	m.loginLatency.Record(ctx, millis(elapsed), attrs)
}

// RateLimitDecision records whether a counted request was admitted.
func (m *Metrics) RateLimitDecision(ctx context.Context, route string, allowed bool) {
	if m == nil {
		return
	}
	m.limitDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.Bool("ratelimit.allowed", allowed),
	))
}

// RateLimitSweep records the entries removed by one sweep.
func (m *Metrics) RateLimitSweep(ctx context.Context, removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.limitSwept.Add(ctx, int64(removed))
}
