package flow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "flow"

// startInvokeSpan creates the span of one invocation.
// Uses the global tracer initialized by the telemetry package.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startInvokeSpan[T Subject](
	ctx context.Context,
	subjectType, attr, action string,
	inv *invocation[T],
) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "flow.invoke")
	span.SetAttributes(
		attribute.String("subject_type", subjectType),
		attribute.String("attribute", attr),
		attribute.String("action", action),
		attribute.String("mode", inv.mode.String()),
		attribute.String("invocation_id", inv.id),
		attribute.Int("args", len(inv.args)),
	)

	return ctx, span
}

// endInvokeSpan records the outcome of an invocation and ends its span.
func endInvokeSpan[T Subject](span trace.Span, inv *invocation[T], err error) {
	span.SetAttributes(
		attribute.String("from", string(inv.from)),
		attribute.String("outcome", inv.outcome),
	)

	if inv.outcome == outcomeCommitted {
		span.SetAttributes(attribute.String("to", string(inv.to)))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, inv.outcome)
	}

	span.End()
}

// startMergeSpan creates the span of one merge.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startMergeSpan(ctx context.Context, subjectType, attr string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "flow.merge")
	span.SetAttributes(
		attribute.String("subject_type", subjectType),
		attribute.String("attribute", attr),
	)

	return ctx, span
}

// traceIDs extracts trace and span IDs from ctx for log correlation.
func traceIDs(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		sc := span.SpanContext()

		return sc.TraceID().String(), sc.SpanID().String()
	}

	return "", ""
}
