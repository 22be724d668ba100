package flow

import (
	"fmt"
	"slices"
	"strings"
)

// Predicate is a guard callback. It receives the target subject and the
// invocation arguments and must not mutate state.
type Predicate[T Subject] func(subject T, args ...any) bool

// GuardKind tags the shape of a Guard.
type GuardKind int

const (
	// GuardNone is the zero Guard: it always passes.
	GuardNone GuardKind = iota
	// GuardAlways wraps a predicate callback.
	GuardAlways
	// GuardNamed names a predicate method on the subject type.
	GuardNamed
	// GuardDependency requires another attribute of the subject to be in a set of states.
	GuardDependency
	// GuardAll requires every element to pass.
	GuardAll
)

func (k GuardKind) String() string {
	switch k {
	case GuardNone:
		return "none"
	case GuardAlways:
		return "always"
	case GuardNamed:
		return "named"
	case GuardDependency:
		return "dependency"
	case GuardAll:
		return "all"
	default:
		return "unknown"
	}
}

// Guard gates whether a transition is permitted. Build one with When,
// Named, Requires or All.
type Guard[T Subject] struct {
	kind      GuardKind
	fn        Predicate[T]
	method    string
	attribute string
	states    []State
	all       []Guard[T]

	// conjoined marks conjunctions built while merging, which may hold any
	// already-validated guard kind.
	conjoined bool
}

// When builds a guard from a predicate callback.
func When[T Subject](fn Predicate[T]) Guard[T] {
	return Guard[T]{kind: GuardAlways, fn: fn}
}

// Named builds a guard that calls the named method on the subject. The
// method must have signature func() bool or func(...any) bool.
func Named[T Subject](method string) Guard[T] {
	return Guard[T]{kind: GuardNamed, method: method}
}

// Requires builds a guard that passes when the subject's other attribute is
// currently in one of states.
func Requires[T Subject](attribute string, states ...State) Guard[T] {
	return Guard[T]{kind: GuardDependency, attribute: attribute, states: states}
}

// All builds a conjunction of named and callback guards.
func All[T Subject](guards ...Guard[T]) Guard[T] {
	return Guard[T]{kind: GuardAll, all: guards}
}

// Kind reports the guard's shape.
func (g Guard[T]) Kind() GuardKind {
	return g.kind
}

// IsZero reports whether g is the zero, always-passing guard.
func (g Guard[T]) IsZero() bool {
	return g.kind == GuardNone
}

func (g Guard[T]) String() string {
	switch g.kind {
	case GuardNone:
		return ""
	case GuardAlways:
		return "when(func)"
	case GuardNamed:
		return "if(" + g.method + ")"
	case GuardDependency:
		names := make([]string, len(g.states))
		for i, s := range g.states {
			names[i] = s.String()
		}

		return fmt.Sprintf("requires(%s in [%s])", g.attribute, strings.Join(names, " "))
	case GuardAll:
		parts := make([]string, len(g.all))
		for i, e := range g.all {
			parts[i] = e.String()
		}

		return "all(" + strings.Join(parts, ", ") + ")"
	default:
		return "unknown"
	}
}

// evaluate runs the guard against subject. Conjunctions are evaluated left
// to right and stop at the first failing element.
func (g Guard[T]) evaluate(subject T, args []any) bool {
	switch g.kind {
	case GuardNone:
		return true
	case GuardAlways:
		return g.fn(subject, args...)
	case GuardNamed:
		return g.fn(subject, args...)
	case GuardDependency:
		return slices.Contains(g.states, StateOf(subject.State(g.attribute)))
	case GuardAll:
		for _, e := range g.all {
			if !e.evaluate(subject, args) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// resolve validates the guard against its declaration environment and
// returns a copy ready for evaluation.
func (g Guard[T]) resolve(env *declEnv) (Guard[T], error) {
	switch g.kind {
	case GuardNone:
		return g, nil
	case GuardAlways:
		if g.fn == nil {
			return g, fmt.Errorf("%w: nil predicate", ErrInvalidGuard)
		}

		return g, nil
	case GuardNamed:
		ref, err := resolveMethod[T](g.method, predicateMethod)
		if err != nil {
			return g, err
		}

		g.fn = methodPredicate[T](ref)

		return g, nil
	case GuardDependency:
		return g.resolveDependency(env)
	case GuardAll:
		return g.resolveAll(env)
	default:
		return g, fmt.Errorf("%w: unknown guard kind %d", ErrInvalidGuard, g.kind)
	}
}

func (g Guard[T]) resolveDependency(env *declEnv) (Guard[T], error) {
	if g.attribute == "" {
		return g, fmt.Errorf("%w: dependency without attribute", ErrInvalidGuard)
	}

	if len(g.states) == 0 {
		return g, fmt.Errorf("%w: dependency on %s without states", ErrInvalidGuard, g.attribute)
	}

	declared, err := env.dependencyStates(g.attribute)
	if err != nil {
		return g, err
	}

	states := make([]State, len(g.states))

	for i, s := range g.states {
		states[i] = StateOf(s)

		if !slices.Contains(declared, states[i]) {
			return g, fmt.Errorf("%w: %s.%s", ErrUnknownState, g.attribute, states[i])
		}
	}

	g.states = states

	return g, nil
}

func (g Guard[T]) resolveAll(env *declEnv) (Guard[T], error) {
	if len(g.all) == 0 {
		return g, fmt.Errorf("%w: empty conjunction", ErrInvalidGuard)
	}

	elems := make([]Guard[T], len(g.all))

	for i, e := range g.all {
		if !g.conjoined && e.kind != GuardAlways && e.kind != GuardNamed {
			return g, fmt.Errorf("%w: conjunction element %d is %s", ErrInvalidGuard, i, e.kind)
		}

		resolved, err := e.resolve(env)
		if err != nil {
			return g, err
		}

		elems[i] = resolved
	}

	g.all = elems

	return g, nil
}

// conjoin returns a guard that passes only when both a and b pass. Both
// must already be resolved.
func conjoin[T Subject](a, b Guard[T]) Guard[T] {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	}

	var elems []Guard[T]

	for _, g := range []Guard[T]{a, b} {
		if g.kind == GuardAll {
			elems = append(elems, g.all...)
		} else {
			elems = append(elems, g)
		}
	}

	return Guard[T]{kind: GuardAll, all: elems, conjoined: true}
}
