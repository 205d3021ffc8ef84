package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrSessionID  = "session.id"
	AttrURL        = "url"
	AttrOutcome    = "job.outcome"
	AttrBytes      = "job.bytes"
	AttrErrorMsg   = "error.message"
	AttrDelayMs    = "job.delay_ms"
	AttrFaviconURL = "favicon.url"
)

// Span names.
const (
	SpanJobFavicon = "job.favicon"
	SpanJobPage    = "job.page"
)

// Job outcomes recorded under AttrOutcome.
const (
	OutcomeLoaded    = "loaded"
	OutcomeFailed    = "failed"
	OutcomeNotText   = "not_text"
	OutcomePanicked  = "panicked"
	OutcomeCancelled = "cancelled"
)

// Event names.
const (
	EventDelayElapsed = "delay.elapsed"
	EventEventSent    = "event.sent"
)

// StartJob opens an internal span for a fetch job.
func StartJob(ctx context.Context, tracer trace.Tracer, name, sessionID, url string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrSessionID, sessionID),
			attribute.String(AttrURL, url),
		),
	)
}

// EndJob records the outcome and ends span. A non-nil err marks the span as
// failed.
func EndJob(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String(AttrOutcome, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMsg, err.Error()))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
