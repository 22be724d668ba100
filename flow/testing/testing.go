// Package testing provides testing utilities for flows.
//
//nolint:varnamelen // Short names idiomatic in test helpers
package testing

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-flow/flow"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// EntryKind tags a recorded hook call.
type EntryKind string

const (
	KindExecuted  EntryKind = "executed"
	KindRejected  EntryKind = "rejected"
	KindMissing   EntryKind = "missing"
	KindMerged    EntryKind = "merged"
	KindExtension EntryKind = "extension"
)

// TraceEntry records one hook call.
type TraceEntry struct {
	Timestamp time.Time
	Kind      EntryKind
	Event     flow.Event
	Actions   []string
}

// Recorder is a flow.Logger that keeps every call and mirrors it to a
// slog.Logger. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []TraceEntry
	log     *slog.Logger
}

var _ flow.Logger = (*Recorder)(nil)

// NewRecorder creates a recorder that writes to log; a nil log discards output.
func NewRecorder(log *slog.Logger) *Recorder {
	return &Recorder{log: log}
}

func (r *Recorder) TransitionExecuted(ctx context.Context, event flow.Event) {
	r.add(ctx, TraceEntry{Kind: KindExecuted, Event: event})
}

func (r *Recorder) TransitionRejected(ctx context.Context, event flow.Event) {
	r.add(ctx, TraceEntry{Kind: KindRejected, Event: event})
}

func (r *Recorder) TransitionMissing(ctx context.Context, event flow.Event) {
	r.add(ctx, TraceEntry{Kind: KindMissing, Event: event})
}

func (r *Recorder) FlowMerged(ctx context.Context, subjectType, attribute string, actions []string) {
	r.add(ctx, TraceEntry{
		Kind:    KindMerged,
		Event:   flow.Event{SubjectType: subjectType, Attribute: attribute},
		Actions: actions,
	})
}

func (r *Recorder) ExtensionApplied(ctx context.Context, subjectType, attribute string, _ time.Duration) {
	r.add(ctx, TraceEntry{
		Kind:  KindExtension,
		Event: flow.Event{SubjectType: subjectType, Attribute: attribute},
	})
}

func (r *Recorder) add(ctx context.Context, entry TraceEntry) {
	entry.Timestamp = time.Now()

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	if r.log != nil {
		r.log.DebugContext(ctx, "flow hook",
			"kind", string(entry.Kind),
			"attribute", entry.Event.Attribute,
			"action", entry.Event.Action,
			"from", entry.Event.From.String(),
			"to", entry.Event.To.String(),
		)
	}
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.entries)
}

// Reset forgets every recorded entry.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
}

// TestFlow wraps a Definition with a recorder and assertions.
type TestFlow[T flow.Subject] struct {
	*flow.Definition[T]

	t        *testing.T
	recorder *Recorder
}

// NewTestFlow defines a flow whose hooks are recorded and logged to the test log.
func NewTestFlow[T flow.Subject](
	t *testing.T,
	registry *flow.Registry,
	attribute string,
	block flow.Block[T],
	opts ...flow.Option[T],
) *TestFlow[T] {
	t.Helper()

	recorder := NewRecorder(slogt.New(t))

	def, err := flow.Define(registry, attribute, block, append(opts, flow.WithLogger[T](recorder))...)
	require.NoError(t, err, "failed to define flow")

	return &TestFlow[T]{
		Definition: def,
		t:          t,
		recorder:   recorder,
	}
}

// Recorder returns the flow's recorder.
func (tf *TestFlow[T]) Recorder() *Recorder {
	return tf.recorder
}

// MustInvoke invokes action and fails the test on error.
func (tf *TestFlow[T]) MustInvoke(subject T, action string, args ...any) (flow.State, bool) {
	tf.t.Helper()

	next, ok, err := tf.Invoke(tf.t.Context(), subject, action, args)
	require.NoError(tf.t, err, "invoke %s", action)

	return next, ok
}

// AssertState checks subject's current state of the flow's attribute.
func (tf *TestFlow[T]) AssertState(subject T, expected flow.State) {
	tf.t.Helper()

	require.Equal(tf.t, flow.StateOf(expected), flow.StateOf(subject.State(tf.Attribute())),
		"%s should be %s", tf.Attribute(), expected)
}

// AssertMatches checks every matcher against the recorded trace.
func (tf *TestFlow[T]) AssertMatches(matchers ...Matcher) {
	tf.t.Helper()

	for _, m := range matchers {
		ok, err := m.Match(tf.recorder)
		require.True(tf.t, ok, "%s: %v", m.Description(), err)
	}
}
