package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrUsername     = "enduser.id"
	AttrLoginStep    = "login.step"
	AttrLoginOutcome = "login.outcome"
)

// StartLogin opens the span covering one login attempt.
func StartLogin(ctx context.Context, username string) (context.Context, trace.Span) {
	return otel.Tracer(meterName).Start(ctx, "auth.Login",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(AttrUsername, username)),
	)
}

// LoginStep marks entry into a state of the login state machine.
func LoginStep(span trace.Span, step string) {
	span.AddEvent("login."+step, trace.WithAttributes(attribute.String(AttrLoginStep, step)))
}

// EndLogin sets the outcome, records err when present and ends the span.
func EndLogin(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String(AttrLoginOutcome, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
