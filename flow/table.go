package flow

import (
	"fmt"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/zeebo/xxh3"
)

// Rule is the declared destination, guard and effects for one
// (action, source state) pair.
type Rule[T Subject] struct {
	to      State
	resolve Resolver[T]
	hasTo   bool
	guard   Guard[T]
	effects []Effect[T]
}

// HasDestination reports whether the rule declares a destination.
func (r *Rule[T]) HasDestination() bool {
	return r.hasTo
}

// Guard returns the rule's guard; the zero Guard when none was declared.
func (r *Rule[T]) Guard() Guard[T] {
	return r.guard
}

// destination computes where the rule leads for subject and args.
func (r *Rule[T]) destination(subject T, args []any) State {
	if r.resolve != nil {
		return StateOf(r.resolve(subject, args...))
	}

	return r.to
}

func (r *Rule[T]) runEffects(subject T, args []any) error {
	for i, effect := range r.effects {
		err := effect(subject, args...)
		if err != nil {
			if len(r.effects) == 1 {
				return err
			}

			return fmt.Errorf("effect %d failed: %w", i, err)
		}
	}

	return nil
}

func (r *Rule[T]) clone() *Rule[T] {
	c := *r
	c.effects = slices.Clone(r.effects)

	return &c
}

// RuleInfo is a structural, comparable view of a rule.
type RuleInfo struct {
	Action   string
	From     State
	To       State
	Computed bool
	Guard    string
	Effects  int
}

func (i RuleInfo) String() string {
	to := i.To.String()
	if i.Computed {
		to = "<computed>"
	}

	s := fmt.Sprintf("%s: %s -> %s", i.Action, i.From, to)

	if i.Guard != "" {
		s += " " + i.Guard
	}

	if i.Effects > 0 {
		s += fmt.Sprintf(" effects=%d", i.Effects)
	}

	return s
}

// Table maps action -> source state -> rule. It is built during declaration
// and only mutated afterwards by merges.
type Table[T Subject] struct {
	rules   map[string]map[State]*Rule[T]
	actions []string
	states  map[State]struct{}
}

func newTable[T Subject]() *Table[T] {
	return &Table[T]{
		rules:  make(map[string]map[State]*Rule[T]),
		states: make(map[State]struct{}),
	}
}

// declareState records a state with no outgoing rules of its own.
func (t *Table[T]) declareState(state State) {
	t.states[state] = struct{}{}
}

// declare adds or overwrites the rule for each source state.
func (t *Table[T]) declare(action string, sources []State, rule *Rule[T]) {
	bucket, ok := t.rules[action]
	if !ok {
		bucket = make(map[State]*Rule[T])
		t.rules[action] = bucket
		t.actions = append(t.actions, action)
	}

	for _, src := range sources {
		bucket[src] = rule.clone()
		t.declareState(src)
	}

	if rule.hasTo && rule.resolve == nil {
		t.declareState(rule.to)
	}
}

// attachGuard replaces only the guard of existing rules.
func (t *Table[T]) attachGuard(action string, sources []State, guard Guard[T]) error {
	for _, src := range sources {
		rule, ok := t.Lookup(action, src)
		if !ok {
			return fmt.Errorf("%w: %s from %s", ErrRuleNotFound, action, src)
		}

		rule.guard = guard
	}

	return nil
}

// Lookup returns the rule for action from state.
func (t *Table[T]) Lookup(action string, state State) (*Rule[T], bool) {
	rule, ok := t.rules[action][state]

	return rule, ok
}

// Actions returns the declared actions in declaration order.
func (t *Table[T]) Actions() []string {
	return slices.Clone(t.actions)
}

// Sources returns the source states action is declared from.
func (t *Table[T]) Sources(action string) []State {
	out := make([]State, 0, len(t.rules[action]))

	for src := range t.rules[action] {
		out = append(out, src)
	}

	return sortStates(out)
}

// States returns every declared state in natural order.
func (t *Table[T]) States() []State {
	out := make([]State, 0, len(t.states))

	for s := range t.states {
		out = append(out, s)
	}

	return sortStates(out)
}

// Describe returns a structural view of every rule, ordered by action
// declaration order and then by source state.
func (t *Table[T]) Describe() []RuleInfo {
	var infos []RuleInfo

	for _, action := range t.actions {
		for _, src := range t.Sources(action) {
			rule := t.rules[action][src]
			infos = append(infos, RuleInfo{
				Action:   action,
				From:     src,
				To:       rule.to,
				Computed: rule.resolve != nil,
				Guard:    rule.guard.String(),
				Effects:  len(rule.effects),
			})
		}
	}

	return infos
}

// Fingerprint hashes the table's structure. Two tables with the same
// fingerprint declare the same states, rules, guard shapes and effect counts.
func (t *Table[T]) Fingerprint() uint64 {
	var sb strings.Builder

	for _, s := range t.States() {
		sb.WriteString("state ")
		sb.WriteString(string(s))
		sb.WriteByte('\n')
	}

	for _, info := range t.Describe() {
		sb.WriteString(info.String())
		sb.WriteByte('\n')
	}

	return xxh3.HashString(sb.String())
}

func sortStates(states []State) []State {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}

	natsort.Sort(names)

	for i, n := range names {
		states[i] = State(n)
	}

	return states
}
