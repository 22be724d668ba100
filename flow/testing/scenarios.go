package testing

import (
	"testing"

	"github.com/amp-labs/amp-flow/flow"
	"github.com/stretchr/testify/require"
)

// Step is one invocation of a scenario.
type Step struct {
	Action    string
	Args      []any
	Mode      flow.Mode
	WantState flow.State
	WantOK    bool
	WantErr   error
}

// Scenario runs a sequence of invocations against a fresh subject.
type Scenario[T flow.Subject] struct {
	Name   string
	Setup  func() T
	Steps  []Step
	Expect []Matcher
}

// RunScenario executes scenario against tf in a subtest.
func RunScenario[T flow.Subject](t *testing.T, tf *TestFlow[T], scenario Scenario[T]) {
	t.Helper()
	t.Run(scenario.Name, func(t *testing.T) {
		subject := scenario.Setup()

		for i, step := range scenario.Steps {
			next, ok, err := tf.Invoke(t.Context(), subject, step.Action, step.Args, step.Mode)

			if step.WantErr != nil {
				require.ErrorIs(t, err, step.WantErr, "step %d (%s)", i, step.Action)
			} else {
				require.NoError(t, err, "step %d (%s)", i, step.Action)
			}

			require.Equal(t, step.WantOK, ok, "step %d (%s) ok", i, step.Action)

			if step.WantOK {
				require.Equal(t, flow.StateOf(step.WantState), next, "step %d (%s) state", i, step.Action)
			}
		}

		for _, m := range scenario.Expect {
			matched, err := m.Match(tf.recorder)
			require.True(t, matched, "%s: %v", m.Description(), err)
		}
	})
}
