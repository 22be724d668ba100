package flow

import (
	"fmt"
	"strings"
)

// Block is a set of declarations. Flow definitions, merges and extensions
// are all written as blocks.
type Block[T Subject] func(d *Declarer[T])

// Declarer records declarations for one flow. Declarations are applied in
// the order they were made once the block returns; the first error aborts
// the whole block.
type Declarer[T Subject] struct {
	env   *declEnv
	table *Table[T]

	// fallback is the receiver's table while declaring a merge block, so
	// guards may be attached to rules the block itself does not declare.
	fallback *Table[T]
	deferred []attachment[T]

	ops     []func() error
	wrapper Wrapper[T]
	missing MissingHandler
}

type attachment[T Subject] struct {
	action  string
	sources []State
	guard   Guard[T]
}

// declEnv carries what validation needs to know about the flow being declared.
type declEnv struct {
	subjectType string
	attribute   string
	registry    *Registry
	merging     bool
}

// dependencyStates returns the states declared by another flow of the same subject type.
func (e *declEnv) dependencyStates(attribute string) ([]State, error) {
	if e.registry == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, attribute)
	}

	other, ok := e.registry.Flow(e.subjectType, attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, attribute)
	}

	return other.States(), nil
}

func (e *declEnv) wrap(action string, err error) error {
	if err == nil {
		return nil
	}

	return &DeclarationError{
		SubjectType: e.subjectType,
		Attribute:   e.attribute,
		Action:      action,
		Err:         err,
	}
}

func newDeclarer[T Subject](env *declEnv, table, fallback *Table[T]) *Declarer[T] {
	return &Declarer[T]{
		env:      env,
		table:    table,
		fallback: fallback,
	}
}

// run executes block and applies its declarations.
func (d *Declarer[T]) run(block Block[T]) error {
	if block != nil {
		block(d)
	}

	for _, op := range d.ops {
		err := op()
		if err != nil {
			return err
		}
	}

	return nil
}

// State declares a state. Actions declared inside body take the state as
// their source. A State call without a body registers a terminal state.
func (d *Declarer[T]) State(name State, body ...func(s *Scope[T])) {
	state := StateOf(name)

	d.ops = append(d.ops, func() error {
		d.table.declareState(state)

		return nil
	})

	scope := &Scope[T]{declarer: d, state: state}

	for _, fn := range body {
		if fn != nil {
			fn(scope)
		}
	}
}

// Action starts declaring an action outside any state scope; From is required.
func (d *Declarer[T]) Action(name string) *ActionBuilder[T] {
	return d.action(name, nil)
}

// AttachGuard replaces the guard of an already declared action from the
// given source states.
func (d *Declarer[T]) AttachGuard(action string, guard Guard[T], from ...State) {
	sources := States(toAny(from)...)

	d.ops = append(d.ops, func() error {
		return d.env.wrap(action, d.attachGuard(action, sources, guard))
	})
}

// Wrap sets the wrapper that every invocation of the flow runs through.
func (d *Declarer[T]) Wrap(wrapper Wrapper[T]) {
	d.wrapper = wrapper
}

// OnMissing sets the handler called when no rule exists for the current state.
func (d *Declarer[T]) OnMissing(handler MissingHandler) {
	d.missing = handler
}

func (d *Declarer[T]) attachGuard(action string, sources []State, guard Guard[T]) error {
	if len(sources) == 0 {
		return ErrNoSourceState
	}

	resolved, err := guard.resolve(d.env)
	if err != nil {
		return err
	}

	var local, remote []State

	for _, src := range sources {
		_, ok := d.table.Lookup(action, src)

		switch {
		case ok:
			local = append(local, src)
		case d.fallback != nil && d.fallbackHas(action, src):
			remote = append(remote, src)
		default:
			return fmt.Errorf("%w: %s from %s", ErrRuleNotFound, action, src)
		}
	}

	if len(remote) > 0 {
		d.deferred = append(d.deferred, attachment[T]{action: action, sources: remote, guard: resolved})
	}

	return d.table.attachGuard(action, local, resolved)
}

func (d *Declarer[T]) fallbackHas(action string, src State) bool {
	_, ok := d.fallback.Lookup(action, src)

	return ok
}

func (d *Declarer[T]) action(name string, scope *State) *ActionBuilder[T] {
	b := &ActionBuilder[T]{
		declarer: d,
		name:     strings.TrimSpace(name),
		scope:    scope,
	}

	d.ops = append(d.ops, func() error {
		return d.env.wrap(b.name, b.finish())
	})

	return b
}

// Scope declares actions from one source state.
type Scope[T Subject] struct {
	declarer *Declarer[T]
	state    State
}

// State returns the scope's source state.
func (s *Scope[T]) State() State {
	return s.state
}

// Action starts declaring an action from the scope's state.
func (s *Scope[T]) Action(name string) *ActionBuilder[T] {
	state := s.state

	return s.declarer.action(name, &state)
}

// AttachGuard replaces the guard of an action declared from the scope's state.
func (s *Scope[T]) AttachGuard(action string, guard Guard[T]) {
	s.declarer.AttachGuard(action, guard, s.state)
}

// ActionBuilder collects one action declaration.
type ActionBuilder[T Subject] struct {
	declarer *Declarer[T]
	name     string
	scope    *State
	from     []State

	to       State
	resolve  Resolver[T]
	toMethod string
	hasTo    bool

	guard       Guard[T]
	effects     []Effect[T]
	effectNames []string

	err error
}

// From sets explicit source states, overriding any enclosing state scope.
func (b *ActionBuilder[T]) From(states ...State) *ActionBuilder[T] {
	b.from = append(b.from, States(toAny(states)...)...)

	return b
}

// To sets a literal destination.
func (b *ActionBuilder[T]) To(state State) *ActionBuilder[T] {
	b.setDestination()
	b.to = StateOf(state)

	return b
}

// ToFunc sets a destination computed at invocation time.
func (b *ActionBuilder[T]) ToFunc(resolve Resolver[T]) *ActionBuilder[T] {
	b.setDestination()
	b.resolve = resolve

	return b
}

// ToMethod sets a destination computed by the named subject method.
func (b *ActionBuilder[T]) ToMethod(method string) *ActionBuilder[T] {
	b.setDestination()
	b.toMethod = method

	return b
}

// Guard sets the action's guard.
func (b *ActionBuilder[T]) Guard(guard Guard[T]) *ActionBuilder[T] {
	if !b.guard.IsZero() {
		b.fail(ErrGuardAlreadySet)
	}

	b.guard = guard

	return b
}

// When guards the action with a predicate callback.
func (b *ActionBuilder[T]) When(fn Predicate[T]) *ActionBuilder[T] {
	return b.Guard(When(fn))
}

// If guards the action with the named subject method.
func (b *ActionBuilder[T]) If(method string) *ActionBuilder[T] {
	return b.Guard(Named[T](method))
}

// Requires guards the action on another attribute's current state.
func (b *ActionBuilder[T]) Requires(attribute string, states ...State) *ActionBuilder[T] {
	return b.Guard(Requires[T](attribute, states...))
}

// Effect appends a side effect.
func (b *ActionBuilder[T]) Effect(fn Effect[T]) *ActionBuilder[T] {
	if fn == nil {
		b.fail(fmt.Errorf("%w: nil effect", ErrInvalidMethod))

		return b
	}

	b.effects = append(b.effects, fn)

	return b
}

// EffectMethod appends a side effect that calls the named subject method.
func (b *ActionBuilder[T]) EffectMethod(method string) *ActionBuilder[T] {
	b.effectNames = append(b.effectNames, method)

	return b
}

func (b *ActionBuilder[T]) setDestination() {
	if b.hasTo {
		b.fail(ErrDuplicateDestination)
	}

	b.hasTo = true
}

func (b *ActionBuilder[T]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// finish validates the builder and declares its rule.
func (b *ActionBuilder[T]) finish() error {
	if b.err != nil {
		return b.err
	}

	if b.name == "" {
		return ErrEmptyName
	}

	sources := b.from
	if len(sources) == 0 && b.scope != nil {
		sources = []State{*b.scope}
	}

	if len(sources) == 0 {
		return ErrNoSourceState
	}

	if !b.hasTo && !b.declarer.env.merging {
		return ErrNoDestination
	}

	rule := &Rule[T]{
		to:      b.to,
		resolve: b.resolve,
		hasTo:   b.hasTo,
		effects: b.effects,
	}

	if b.toMethod != "" {
		ref, err := resolveMethod[T](b.toMethod, resolverMethod)
		if err != nil {
			return err
		}

		rule.resolve = methodResolver[T](ref)
	}

	for _, name := range b.effectNames {
		ref, err := resolveMethod[T](name, effectMethod)
		if err != nil {
			return err
		}

		rule.effects = append(rule.effects, methodEffect[T](ref))
	}

	guard, err := b.guard.resolve(b.declarer.env)
	if err != nil {
		return err
	}

	rule.guard = guard

	b.declarer.table.declare(b.name, sources, rule)

	return nil
}

func toAny(states []State) []any {
	out := make([]any, len(states))
	for i, s := range states {
		out[i] = s
	}

	return out
}
