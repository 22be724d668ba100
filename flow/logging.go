package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-flow/logger"
)

// Event describes one invocation for logging hooks.
type Event struct {
	SubjectType  string
	Attribute    string
	Action       string
	From         State
	To           State
	Mode         Mode
	InvocationID string
	Err          error
}

// Logger provides logging hooks for flow invocations and merges.
type Logger interface {
	TransitionExecuted(ctx context.Context, event Event)
	TransitionRejected(ctx context.Context, event Event)
	TransitionMissing(ctx context.Context, event Event)
	FlowMerged(ctx context.Context, subjectType, attribute string, actions []string)
	ExtensionApplied(ctx context.Context, subjectType, attribute string, duration time.Duration)
}

// DefaultLogger implements Logger using the context-scoped logger.
type DefaultLogger struct {
	level slog.Level
}

// NewDefaultLogger creates a logger that reports committed transitions at
// level and everything else at debug, except failures which are warnings.
func NewDefaultLogger(level slog.Level) *DefaultLogger {
	return &DefaultLogger{level: level}
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, event Event) {
	logger.Get(ctx).Log(ctx, l.level, "Transition executed", eventFields(ctx, event)...)
}

func (l *DefaultLogger) TransitionRejected(ctx context.Context, event Event) {
	if event.Err != nil {
		logger.Get(ctx).WarnContext(ctx, "Transition failed", append(eventFields(ctx, event), "error", event.Err)...)

		return
	}

	logger.Get(ctx).DebugContext(ctx, "Transition rejected by guard", eventFields(ctx, event)...)
}

func (l *DefaultLogger) TransitionMissing(ctx context.Context, event Event) {
	fields := eventFields(ctx, event)
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}

	logger.Get(ctx).DebugContext(ctx, "No transition for current state", fields...)
}

func (l *DefaultLogger) FlowMerged(ctx context.Context, subjectType, attribute string, actions []string) {
	logger.Get(ctx).DebugContext(ctx, "Flow merged",
		"subject_type", subjectType,
		"attribute", attribute,
		"actions", actions,
	)
}

func (l *DefaultLogger) ExtensionApplied(ctx context.Context, subjectType, attribute string, duration time.Duration) {
	logger.Get(ctx).Log(ctx, l.level, "Extension applied",
		"subject_type", subjectType,
		"attribute", attribute,
		"duration_ms", duration.Milliseconds(),
	)
}

func eventFields(ctx context.Context, event Event) []any {
	fields := []any{
		"subject_type", event.SubjectType,
		"attribute", event.Attribute,
		"action", event.Action,
		"from", event.From.String(),
		"mode", event.Mode.String(),
		"invocation_id", event.InvocationID,
	}

	if event.To != Absent {
		fields = append(fields, "to", event.To.String())
	}

	if traceID, spanID := traceIDs(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID, "span_id", spanID)
	}

	return fields
}
