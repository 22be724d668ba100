package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTickets(t *testing.T, log *[]string, opts ...Option[*ticket]) *Definition[*ticket] {
	t.Helper()

	return defineTickets(t, func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("closed").Effect(recordingEffect(log, "base"))
		})
	}, opts...)
}

func TestMerge_ReplaceIsIdempotent(t *testing.T) {
	t.Parallel()

	var log []string

	ext := func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("resolved").If("IsReady").Effect(recordingEffect(&log, "ext"))
		})
	}

	once := baseTickets(t, &log)
	require.NoError(t, once.Merge(ext))

	twice := baseTickets(t, &log)
	require.NoError(t, twice.Merge(ext))
	require.NoError(t, twice.Merge(ext))

	assert.Equal(t, once.Fingerprint(), twice.Fingerprint())
	assert.Equal(t, once.Describe(), twice.Describe())

	rule, ok := twice.Table().Lookup("close", "open")
	require.True(t, ok)
	assert.Equal(t, State("resolved"), rule.to)
	assert.Len(t, rule.effects, 1)
}

func TestMerge_AdditiveIsNotIdempotent(t *testing.T) {
	t.Parallel()

	var log []string

	ext := func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").Effect(recordingEffect(&log, "ext"))
		})
	}

	once := baseTickets(t, &log, WithMergePolicy(AdditivePolicy[*ticket]()))
	require.NoError(t, once.Merge(ext))

	twice := baseTickets(t, &log, WithMergePolicy(AdditivePolicy[*ticket]()))
	require.NoError(t, twice.Merge(ext))
	require.NoError(t, twice.Merge(ext))

	assert.NotEqual(t, once.Fingerprint(), twice.Fingerprint())

	tk := newTicket(map[string]State{"status": "open"})
	_, ok, err := twice.Invoke(t.Context(), tk, "close", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"base", "ext", "ext"}, log)
}

func TestMerge_AdditiveBlendsRules(t *testing.T) {
	t.Parallel()

	var log []string

	def := defineTickets(t, func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("closed").If("HasArgs").Effect(func(_ *ticket, args ...any) error {
				log = append(log, "base:"+args[0].(string))

				return nil
			})
		})
	}, WithMergePolicy(AdditivePolicy[*ticket]()))

	err := def.Merge(func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").If("IsReady").Effect(func(_ *ticket, args ...any) error {
				log = append(log, "ext:"+args[0].(string))

				return nil
			})
		})
	})
	require.NoError(t, err)

	rule, ok := def.Table().Lookup("close", "open")
	require.True(t, ok)
	assert.Equal(t, GuardAll, rule.Guard().Kind())
	assert.Equal(t, "all(if(HasArgs), if(IsReady))", rule.Guard().String())

	tk := newTicket(map[string]State{"status": "open"})

	_, ok, err = def.Invoke(t.Context(), tk, "close", []any{"x"})
	require.NoError(t, err)
	assert.False(t, ok, "incoming guard must pass too")
	assert.Empty(t, log)

	tk.ready = true

	_, ok, err = def.Invoke(t.Context(), tk, "close", nil)
	require.NoError(t, err)
	assert.False(t, ok, "existing guard must pass too")

	next, ok, err := def.Invoke(t.Context(), tk, "close", []any{"x"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, State("closed"), next, "existing destination kept")
	assert.Equal(t, []string{"base:x", "ext:x"}, log)
}

func TestMerge_AdditivePrefersSuppliedDestination(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log, WithMergePolicy(AdditivePolicy[*ticket]()))

	require.NoError(t, def.Merge(func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").ToMethod("Pick") })
	}))

	tk := newTicket(map[string]State{"status": "open"})

	next, _, err := def.Invoke(t.Context(), tk, "close", []any{"wontfix"})
	require.NoError(t, err)
	assert.Equal(t, State("wontfix"), next)
	assert.Equal(t, []string{"base"}, log)
}

func TestMerge_ReplaceNeedsDestination(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log)
	before := def.Fingerprint()

	err := def.Merge(func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").If("IsReady") })
	})
	require.ErrorIs(t, err, ErrNoDestination)
	assert.Equal(t, before, def.Fingerprint())
}

func TestMerge_NewRuleNeedsDestination(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log, WithMergePolicy(AdditivePolicy[*ticket]()))

	err := def.Merge(func(d *Declarer[*ticket]) {
		d.State("review", func(s *Scope[*ticket]) { s.Action("reopen") })
	})
	require.ErrorIs(t, err, ErrNoDestination)
	assert.NotContains(t, def.States(), State("review"), "nothing is committed")
	assert.Equal(t, []string{"close"}, def.Actions())
}

func TestMerge_FailureLeavesTableUntouched(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log)
	before := def.Describe()

	err := def.Merge(func(d *Declarer[*ticket]) {
		d.State("closed", func(s *Scope[*ticket]) { s.Action("reopen").To("open") })
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").If("Unknown") })
	})
	require.ErrorIs(t, err, ErrUnknownMethod)

	var declErr *DeclarationError
	require.ErrorAs(t, err, &declErr)
	assert.Equal(t, "close", declErr.Action)

	assert.Equal(t, before, def.Describe())
	assert.Equal(t, []string{"close"}, def.Actions())
}

func TestMerge_AddsActionsAndStates(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log)

	require.NoError(t, def.Merge(func(d *Declarer[*ticket]) {
		d.State("closed", func(s *Scope[*ticket]) { s.Action("reopen").To("open") })
		d.State("archived")
	}))

	assert.Equal(t, []string{"close", "reopen"}, def.Actions())
	assert.Equal(t, []State{"archived", "closed", "open"}, def.States())

	tk := newTicket(map[string]State{"status": "closed"})

	next, ok, err := def.Invoke(t.Context(), tk, "reopen", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, State("open"), next)
}

func TestMerge_AttachGuardToExistingRule(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log)

	require.NoError(t, def.Merge(func(d *Declarer[*ticket]) {
		d.AttachGuard("close", Named[*ticket]("IsReady"), "open")
	}))

	rule, ok := def.Table().Lookup("close", "open")
	require.True(t, ok)
	assert.Equal(t, GuardNamed, rule.Guard().Kind())
	assert.Equal(t, State("closed"), rule.to)
	assert.Len(t, rule.effects, 1)

	err := def.Merge(func(d *Declarer[*ticket]) {
		d.AttachGuard("close", Named[*ticket]("IsReady"), "closed")
	})
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestMerge_ReplacesWrapperAndMissingHandler(t *testing.T) {
	t.Parallel()

	var log []string

	def := baseTickets(t, &log)
	wrapped := 0

	require.NoError(t, def.Merge(func(d *Declarer[*ticket]) {
		d.Wrap(func(_ context.Context, _ *ticket, run func() error) error {
			wrapped++

			return run()
		})
		d.OnMissing(IgnoreMissing)
	}))

	tk := newTicket(map[string]State{"status": "closed"})

	_, ok, err := def.Invoke(t.Context(), tk, "close", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, wrapped)
}

func TestMerge_CustomPolicy(t *testing.T) {
	t.Parallel()

	var log []string

	keepExisting := func(existing, _ *Rule[*ticket]) *Rule[*ticket] { return existing }

	def := baseTickets(t, &log, WithMergePolicy(keepExisting))
	before := def.Describe()

	require.NoError(t, def.Merge(func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("elsewhere") })
	}))

	assert.Equal(t, before, def.Describe())
}
