package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefine_DeclarationErrors(t *testing.T) {
	t.Parallel()

	always := When(func(*ticket, ...any) bool { return true })

	tests := []struct {
		name   string
		block  Block[*ticket]
		want   error
		action string
	}{
		{
			name:   "action outside a state needs explicit sources",
			block:  func(d *Declarer[*ticket]) { d.Action("close").To("closed") },
			want:   ErrNoSourceState,
			action: "close",
		},
		{
			name: "destination is required",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close") })
			},
			want:   ErrNoDestination,
			action: "close",
		},
		{
			name: "only one destination",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) {
					s.Action("close").To("closed").ToMethod("Pick")
				})
			},
			want: ErrDuplicateDestination,
		},
		{
			name: "only one guard",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) {
					s.Action("close").To("closed").Guard(always).If("IsReady")
				})
			},
			want: ErrGuardAlreadySet,
		},
		{
			name: "empty action name",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("  ").To("closed") })
			},
			want: ErrEmptyName,
		},
		{
			name: "named guard must exist",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").If("CanClose") })
			},
			want: ErrUnknownMethod,
		},
		{
			name: "named guard takes no typed parameters",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").If("TakesInt") })
			},
			want: ErrInvalidMethod,
		},
		{
			name: "named guard must return bool",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").If("ReturnsString") })
			},
			want: ErrInvalidMethod,
		},
		{
			name: "effect method returns error or nothing",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").EffectMethod("IsReady") })
			},
			want: ErrInvalidMethod,
		},
		{
			name: "nil effect",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").Effect(nil) })
			},
			want: ErrInvalidMethod,
		},
		{
			name: "nil predicate",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").When(nil) })
			},
			want: ErrInvalidGuard,
		},
		{
			name: "dependency needs a known attribute",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").Requires("review", "done") })
			},
			want: ErrUnknownAttribute,
		},
		{
			name: "dependency needs states",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").Requires("review") })
			},
			want: ErrInvalidGuard,
		},
		{
			name: "empty conjunction",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").Guard(All[*ticket]()) })
			},
			want: ErrInvalidGuard,
		},
		{
			name: "conjunction holds only named and callback guards",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) {
					s.Action("close").To("closed").Guard(All(always, Requires[*ticket]("review", "done")))
				})
			},
			want: ErrInvalidGuard,
		},
		{
			name: "conjunction elements are validated",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) {
					s.Action("close").To("closed").Guard(All(always, Named[*ticket]("Nope")))
				})
			},
			want: ErrUnknownMethod,
		},
		{
			name: "attached guard needs an existing rule",
			block: func(d *Declarer[*ticket]) {
				d.State("open")
				d.AttachGuard("close", always, "open")
			},
			want:   ErrRuleNotFound,
			action: "close",
		},
		{
			name: "attached guard needs source states",
			block: func(d *Declarer[*ticket]) {
				d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed") })
				d.AttachGuard("close", always)
			},
			want: ErrNoSourceState,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			def, err := Define(nil, "status", test.block)
			require.ErrorIs(t, err, test.want)
			assert.Nil(t, def)

			var declErr *DeclarationError
			require.ErrorAs(t, err, &declErr)
			assert.Equal(t, "ticket", declErr.SubjectType)
			assert.Equal(t, "status", declErr.Attribute)

			if test.action != "" {
				assert.Equal(t, test.action, declErr.Action)
			}
		})
	}
}

func TestDefine_EmptyAttribute(t *testing.T) {
	t.Parallel()

	_, err := Define[*ticket](nil, "", nil)
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestDefine_DuplicateFlow(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	block := func(d *Declarer[*ticket]) { d.State("open") }

	_, err := Define(reg, "status", block)
	require.NoError(t, err)

	_, err = Define(reg, "status", block)
	require.ErrorIs(t, err, ErrDuplicateFlow)
}

func TestDefine_DependencyValidatedAgainstOtherFlow(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	_, err := Define(reg, "review", func(d *Declarer[*ticket]) {
		d.State("pending", func(s *Scope[*ticket]) { s.Action("approve").To("approved") })
	})
	require.NoError(t, err)

	_, err = Define(reg, "status", func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").Requires("review", "final") })
	})
	require.ErrorIs(t, err, ErrUnknownState)

	def, err := Define(reg, "status", func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed").Requires("review", "approved") })
	})
	require.NoError(t, err)

	rule, ok := def.Table().Lookup("close", "open")
	require.True(t, ok)
	assert.Equal(t, GuardDependency, rule.Guard().Kind())
	assert.Equal(t, "requires(review in [approved])", rule.Guard().String())
}

func TestDefine_TableShape(t *testing.T) {
	t.Parallel()

	def, err := Define(nil, "status", func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("closed").If("IsReady").EffectMethod("Record")
			s.Action("assign").ToMethod("Pick")
			s.Action("reopen").From("closed").To("open")
		})
		d.State("archived")
		d.Action("create").From(Absent).To("open")
		d.Action("archive").From("open", "closed").To("archived")
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"close", "assign", "reopen", "create", "archive"}, def.Actions())
	assert.ElementsMatch(t, []State{Absent, "archived", "closed", "open"}, def.States())

	_, ok := def.Table().Lookup("reopen", "open")
	assert.False(t, ok, "From overrides the enclosing state")

	rule, ok := def.Table().Lookup("reopen", "closed")
	require.True(t, ok)
	assert.True(t, rule.HasDestination())
	assert.True(t, rule.Guard().IsZero())

	assert.Equal(t, []State{"closed", "open"}, def.Table().Sources("archive"))

	infos := def.Describe()
	require.Len(t, infos, 6)
	assert.Equal(t, "close: open -> closed if(IsReady) effects=1", infos[0].String())
	assert.Equal(t, "assign: open -> <computed>", infos[1].String())
	assert.Equal(t, "create: <absent> -> open", infos[3].String())
}

func TestDefine_AttachGuardReplacesGuardOnly(t *testing.T) {
	t.Parallel()

	def, err := Define(nil, "status", func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) {
			s.Action("close").To("closed").Effect(func(*ticket, ...any) error { return nil })
			s.AttachGuard("close", Named[*ticket]("IsReady"))
		})
	})
	require.NoError(t, err)

	rule, ok := def.Table().Lookup("close", "open")
	require.True(t, ok)
	assert.Equal(t, GuardNamed, rule.Guard().Kind())
	assert.Equal(t, State("closed"), rule.to)
	assert.Len(t, rule.effects, 1)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	block := func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("closed") })
	}

	a, err := Define(nil, "status", block)
	require.NoError(t, err)

	b, err := Define(nil, "status", block)
	require.NoError(t, err)

	c, err := Define(nil, "status", func(d *Declarer[*ticket]) {
		d.State("open", func(s *Scope[*ticket]) { s.Action("close").To("done") })
	})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestDeclarationError_Message(t *testing.T) {
	t.Parallel()

	err := &DeclarationError{SubjectType: "ticket", Attribute: "status", Action: "close", Err: ErrNoDestination}
	assert.Equal(t, "flow ticket.status: action close: action declared without destination", err.Error())
	assert.True(t, errors.Is(err, ErrNoDestination))

	err.Action = ""
	assert.Equal(t, "flow ticket.status: action declared without destination", err.Error())
}
