package flow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// MissingTransition describes an invocation for which no rule exists.
type MissingTransition struct {
	SubjectType string
	Attribute   string
	Action      string
	State       State
	Mode        Mode
}

// MissingHandler is called when no rule exists for the current (action,
// state) pair. Returning nil makes a soft invocation return quietly with no
// result; strict invocations raise regardless.
type MissingHandler func(ctx context.Context, missing MissingTransition) error

// RaiseMissing is the default MissingHandler: it reports ErrNoTransition.
func RaiseMissing(context.Context, MissingTransition) error {
	return ErrNoTransition
}

// IgnoreMissing is a MissingHandler that treats a missing rule as "no result".
func IgnoreMissing(context.Context, MissingTransition) error {
	return nil
}

// Wrapper intercepts every invocation of a flow. run performs the resolved
// transition, guard check included; the wrapper decides whether and how
// often to call it. A wrapper that never calls run leaves the target unchanged.
type Wrapper[T Subject] func(ctx context.Context, target T, run func() error) error

// Definition is the transition engine for one attribute of one subject type.
// Its shape is fixed once Define returns, except for later merges.
type Definition[T Subject] struct {
	subjectType string
	attribute   string
	registry    *Registry
	table       *Table[T]
	wrapper     Wrapper[T]
	missing     MissingHandler
	policy      MergePolicy[T]
	logger      Logger
	scope       *ScopeError
}

// Option configures a Definition.
type Option[T Subject] func(*Definition[T])

// WithSubjectType overrides the subject type name used for registry keys and errors.
func WithSubjectType[T Subject](name string) Option[T] {
	return func(d *Definition[T]) {
		d.subjectType = name
	}
}

// WithMergePolicy sets the policy applied when merged declarations collide
// with existing rules. ReplacePolicy is the default.
func WithMergePolicy[T Subject](policy MergePolicy[T]) Option[T] {
	return func(d *Definition[T]) {
		d.policy = policy
	}
}

// WithLogger sets the logger notified of invocations and merges.
func WithLogger[T Subject](logger Logger) Option[T] {
	return func(d *Definition[T]) {
		d.logger = logger
	}
}

// WithWrapper sets the invocation wrapper.
func WithWrapper[T Subject](wrapper Wrapper[T]) Option[T] {
	return func(d *Definition[T]) {
		d.wrapper = wrapper
	}
}

// WithMissingHandler sets the missing-transition handler. A nil handler
// keeps the default, RaiseMissing.
func WithMissingHandler[T Subject](handler MissingHandler) Option[T] {
	return func(d *Definition[T]) {
		if handler != nil {
			d.missing = handler
		}
	}
}

// Define declares the flow for attribute of T. Extensions registered for
// the same subject type and attribute are merged in registration order, and
// the finished Definition is registered so later extensions and dependent
// flows can find it. Any declaration error aborts construction.
//
// registry may be nil for a standalone flow with no extensions and no
// cross-attribute guards.
func Define[T Subject](registry *Registry, attribute string, block Block[T], opts ...Option[T]) (*Definition[T], error) {
	def := &Definition[T]{
		subjectType: SubjectTypeOf[T](),
		attribute:   attribute,
		registry:    registry,
		table:       newTable[T](),
		missing:     RaiseMissing,
		policy:      ReplacePolicy[T](),
	}

	for _, opt := range opts {
		opt(def)
	}

	env := def.env(false)

	if attribute == "" {
		return nil, env.wrap("", ErrEmptyName)
	}

	if registry != nil {
		if _, exists := registry.Flow(def.subjectType, attribute); exists {
			return nil, env.wrap("", ErrDuplicateFlow)
		}
	}

	err := def.declare(block, env, def.table, nil)
	if err != nil {
		return nil, err
	}

	if registry == nil {
		def.scope = &ScopeError{SubjectType: def.subjectType}

		return def, nil
	}

	def.scope = registry.ScopeError(def.subjectType)

	for _, ext := range registry.Extensions(def.subjectType, attribute) {
		err := def.mergeExtension(context.Background(), ext)
		if err != nil {
			return nil, err
		}
	}

	err = registry.register(def)
	if err != nil {
		return nil, env.wrap("", err)
	}

	return def, nil
}

// SubjectType returns the subject type name of the flow.
func (d *Definition[T]) SubjectType() string {
	return d.subjectType
}

// Attribute returns the attribute the flow drives.
func (d *Definition[T]) Attribute() string {
	return d.attribute
}

// Table returns the flow's transition table.
func (d *Definition[T]) Table() *Table[T] {
	return d.table
}

// Actions returns the declared actions in declaration order.
func (d *Definition[T]) Actions() []string {
	return d.table.Actions()
}

// States returns every declared state.
func (d *Definition[T]) States() []State {
	return d.table.States()
}

// Describe returns a structural view of every rule.
func (d *Definition[T]) Describe() []RuleInfo {
	return d.table.Describe()
}

// Fingerprint hashes the structure of the flow's table.
func (d *Definition[T]) Fingerprint() uint64 {
	return d.table.Fingerprint()
}

// Err returns the error class shared by every TransitionError of this
// flow's subject type.
func (d *Definition[T]) Err() *ScopeError {
	return d.scope
}

// Merge folds the declarations of block into the flow using its merge
// policy. The block is declared on its own first, without registry
// extensions; nothing changes unless the whole block is valid.
func (d *Definition[T]) Merge(block Block[T]) error {
	return d.MergeContext(context.Background(), block)
}

// MergeContext is Merge with the merge span and logger hooks parented on ctx.
func (d *Definition[T]) MergeContext(ctx context.Context, block Block[T]) (err error) {
	ctx, span := startMergeSpan(ctx, d.subjectType, d.attribute)

	defer func() {
		outcome := outcomeSuccess
		if err != nil {
			outcome = outcomeError

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "merged")
		}

		span.End()
		mergesTotal.WithLabelValues(d.subjectType, d.attribute, outcome).Inc()
	}()

	incoming := newTable[T]()
	declarer := newDeclarer(d.env(true), incoming, d.table)

	err = declarer.run(block)
	if err != nil {
		return err
	}

	err = d.fold(incoming, declarer.deferred)
	if err != nil {
		return err
	}

	if declarer.wrapper != nil {
		d.wrapper = declarer.wrapper
	}

	if declarer.missing != nil {
		d.missing = declarer.missing
	}

	if d.logger != nil {
		d.logger.FlowMerged(ctx, d.subjectType, d.attribute, d.table.Actions())
	}

	return nil
}

func (d *Definition[T]) env(merging bool) *declEnv {
	return &declEnv{
		subjectType: d.subjectType,
		attribute:   d.attribute,
		registry:    d.registry,
		merging:     merging,
	}
}

func (d *Definition[T]) declare(block Block[T], env *declEnv, table, fallback *Table[T]) error {
	declarer := newDeclarer(env, table, fallback)

	err := declarer.run(block)
	if err != nil {
		return err
	}

	if declarer.wrapper != nil {
		d.wrapper = declarer.wrapper
	}

	if declarer.missing != nil {
		d.missing = declarer.missing
	}

	return nil
}

type stagedRule[T Subject] struct {
	action string
	source State
	rule   *Rule[T]
}

// fold merges incoming into the receiver's table. Every merged rule is
// computed and checked before any of them is committed.
func (d *Definition[T]) fold(incoming *Table[T], deferred []attachment[T]) error {
	env := d.env(true)

	var staged []stagedRule[T]

	for _, action := range incoming.actions {
		for _, src := range incoming.Sources(action) {
			rule := incoming.rules[action][src]

			merged := rule
			if existing, ok := d.table.Lookup(action, src); ok {
				merged = d.policy(existing.clone(), rule.clone())
			}

			if merged == nil || !merged.hasTo {
				return env.wrap(action, fmt.Errorf("%w: from %s", ErrNoDestination, src))
			}

			staged = append(staged, stagedRule[T]{action: action, source: src, rule: merged})
		}
	}

	for s := range incoming.states {
		d.table.declareState(s)
	}

	for _, st := range staged {
		d.table.declare(st.action, []State{st.source}, st.rule)
	}

	for _, a := range deferred {
		err := d.table.attachGuard(a.action, a.sources, a.guard)
		if err != nil {
			return env.wrap(a.action, err)
		}
	}

	return nil
}

// mergeExtension merges a block stored in the registry.
func (d *Definition[T]) mergeExtension(ctx context.Context, block any) error {
	var fn Block[T]

	switch b := block.(type) {
	case Block[T]:
		fn = b
	case func(*Declarer[T]):
		fn = b
	default:
		return d.env(true).wrap("", fmt.Errorf("%w: %T", ErrExtensionType, block))
	}

	start := time.Now()

	err := d.MergeContext(ctx, fn)
	if err != nil {
		return err
	}

	if d.logger != nil {
		d.logger.ExtensionApplied(ctx, d.subjectType, d.attribute, time.Since(start))
	}

	return nil
}

// transitionError builds the strict-mode error for this flow.
func (d *Definition[T]) transitionError(action string, state State, reason Reason, mode Mode, cause error) error {
	return &TransitionError{
		SubjectType: d.subjectType,
		Attribute:   d.attribute,
		Action:      action,
		State:       state,
		Reason:      reason,
		Mode:        mode,
		Err:         cause,
		scope:       d.scope,
	}
}
