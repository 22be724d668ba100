package testing

import (
	"errors"
	"fmt"

	"github.com/amp-labs/amp-flow/flow"
)

// Matcher errors.
var (
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrNotRejected        = errors.New("action was not rejected")
	ErrNotMissing         = errors.New("action was not reported missing")
	ErrUnexpectedEntries  = errors.New("unexpected trace entries")
	ErrNoMatchersPassed   = errors.New("no matchers passed")
)

// Matcher defines an assertion over a recorded trace.
type Matcher interface {
	Match(recorder *Recorder) (bool, error)
	Description() string
}

// TransitionWasTaken matches a committed transition of action from one state to another.
func TransitionWasTaken(action string, from, to flow.State) Matcher {
	return &transitionTakenMatcher{action: action, from: flow.StateOf(from), to: flow.StateOf(to)}
}

type transitionTakenMatcher struct {
	action string
	from   flow.State
	to     flow.State
}

func (m *transitionTakenMatcher) Match(recorder *Recorder) (bool, error) {
	for _, e := range recorder.Entries() {
		if e.Kind == KindExecuted && e.Event.Action == m.action && e.Event.From == m.from && e.Event.To == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %s from %s to %s", ErrTransitionNotTaken, m.action, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("%s should move %s to %s", m.action, m.from, m.to)
}

// ActionWasRejected matches a rejected or failed invocation of action.
func ActionWasRejected(action string) Matcher {
	return &kindMatcher{action: action, kind: KindRejected, err: ErrNotRejected}
}

// ActionWasMissing matches an invocation of action with no rule for the current state.
func ActionWasMissing(action string) Matcher {
	return &kindMatcher{action: action, kind: KindMissing, err: ErrNotMissing}
}

type kindMatcher struct {
	action string
	kind   EntryKind
	err    error
}

func (m *kindMatcher) Match(recorder *Recorder) (bool, error) {
	for _, e := range recorder.Entries() {
		if e.Kind == m.kind && e.Event.Action == m.action {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %s", m.err, m.action)
}

func (m *kindMatcher) Description() string {
	return fmt.Sprintf("%s should be %s", m.action, m.kind)
}

// NoTransitions matches a trace without committed transitions.
func NoTransitions() Matcher {
	return &noTransitionsMatcher{}
}

type noTransitionsMatcher struct{}

func (m *noTransitionsMatcher) Match(recorder *Recorder) (bool, error) {
	for _, e := range recorder.Entries() {
		if e.Kind == KindExecuted {
			return false, fmt.Errorf("%w: %s committed", ErrUnexpectedEntries, e.Event.Action)
		}
	}

	return true, nil
}

func (m *noTransitionsMatcher) Description() string {
	return "no transition should be committed"
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(recorder *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(recorder)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(recorder *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(recorder)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
