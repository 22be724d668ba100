package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookLog struct {
	mu    sync.Mutex
	calls []string
}

func (h *hookLog) add(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, s)
}

func (h *hookLog) TransitionExecuted(_ context.Context, e Event) {
	h.add("executed " + e.Action + " " + e.From.String() + "->" + e.To.String())
}

func (h *hookLog) TransitionRejected(_ context.Context, e Event) {
	if e.Err != nil {
		h.add("failed " + e.Action)

		return
	}

	h.add("rejected " + e.Action)
}

func (h *hookLog) TransitionMissing(_ context.Context, e Event) {
	h.add("missing " + e.Action + " " + e.From.String())
}

func (h *hookLog) FlowMerged(_ context.Context, _, attribute string, actions []string) {
	h.add("merged " + attribute + " " + strings.Join(actions, ","))
}

func (h *hookLog) ExtensionApplied(_ context.Context, _, attribute string, _ time.Duration) {
	h.add("extension " + attribute)
}

func TestLoggerHooks(t *testing.T) {
	t.Parallel()

	hooks := &hookLog{}
	reg := NewRegistry()

	require.NoError(t, Extend(reg, "status", func(d *Declarer[*ticket]) {
		d.State("closed", func(s *Scope[*ticket]) { s.Action("reopen").To("open") })
	}))

	def, err := Define(reg, "status", func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("closed").If("IsReady")
			s.Action("fail").To("closed").Effect(func(*ticket, ...any) error { return errEffect })
		})
	}, WithLogger[*ticket](hooks), WithMissingHandler[*ticket](IgnoreMissing))
	require.NoError(t, err)

	tk := newTicket(map[string]State{"status": "open"})

	_, _, _ = def.Invoke(t.Context(), tk, "close", nil)
	_, _, _ = def.Invoke(t.Context(), tk, "fail", nil)

	tk.ready = true

	_, _, _ = def.Invoke(t.Context(), tk, "close", nil)
	_, _, _ = def.Invoke(t.Context(), tk, "close", nil)

	assert.Equal(t, []string{
		"merged status close,fail,reopen",
		"extension status",
		"rejected close",
		"failed fail",
		"executed close open->closed",
		"missing close closed",
	}, hooks.calls)
}

// Cannot run in parallel: replaces the default slog logger.
//
//nolint:paralleltest
func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer

	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	t.Cleanup(func() { slog.SetDefault(old) })

	def := defineTickets(t, func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("closed").If("IsReady")
			s.Action("fail").To("closed").Effect(func(*ticket, ...any) error { return errEffect })
		})
	}, WithLogger[*ticket](NewDefaultLogger(slog.LevelInfo)), WithMissingHandler[*ticket](IgnoreMissing))

	tk := newTicket(map[string]State{"status": "open"})

	_, _, _ = def.Invoke(t.Context(), tk, "close", nil)
	_, _, _ = def.Invoke(t.Context(), tk, "fail", nil)

	tk.ready = true

	_, _, _ = def.Invoke(t.Context(), tk, "close", nil)
	_, _, _ = def.Invoke(t.Context(), tk, "close", nil)

	require.NoError(t, def.Merge(func(d *Declarer[*ticket]) { d.State("archived") }))

	var records []map[string]any

	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		records = append(records, rec)
	}

	require.Len(t, records, 5)

	assert.Equal(t, "Transition rejected by guard", records[0]["msg"])
	assert.Equal(t, "DEBUG", records[0]["level"])

	assert.Equal(t, "Transition failed", records[1]["msg"])
	assert.Equal(t, "WARN", records[1]["level"])
	assert.Contains(t, records[1]["error"], errEffect.Error())

	assert.Equal(t, "Transition executed", records[2]["msg"])
	assert.Equal(t, "INFO", records[2]["level"])
	assert.Equal(t, "ticket", records[2]["subject_type"])
	assert.Equal(t, "open", records[2]["from"])
	assert.Equal(t, "closed", records[2]["to"])
	assert.Equal(t, "soft", records[2]["mode"])
	assert.NotEmpty(t, records[2]["invocation_id"])

	assert.Equal(t, "No transition for current state", records[3]["msg"])
	assert.Equal(t, "Flow merged", records[4]["msg"])
}
