package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-flow/logger"
	"github.com/google/uuid"
)

// InvokeOption adjusts a single invocation. Mode values (Soft, Strict),
// Target and Then are invocation options.
type InvokeOption interface {
	isInvokeOption()
}

func (Mode) isInvokeOption() {}

type targetOption[T Subject] struct {
	target T
}

func (targetOption[T]) isInvokeOption() {}

// Target runs the transition against target instead of the invoking subject:
// target's attribute is read and written and callbacks receive target.
func Target[T Subject](target T) InvokeOption {
	return targetOption[T]{target: target}
}

type thenOption[T Subject] struct {
	fn func(target T, args ...any)
}

func (thenOption[T]) isInvokeOption() {}

// Then runs fn with the invocation arguments after the new state is committed.
func Then[T Subject](fn func(target T, args ...any)) InvokeOption {
	return thenOption[T]{fn: fn}
}

// invocation is the state of one Invoke call.
type invocation[T Subject] struct {
	id      string
	action  string
	args    []any
	target  T
	mode    Mode
	then    func(target T, args ...any)
	from    State
	to      State
	outcome string
}

// Invoke performs action on subject. It returns the new state and true when
// the transition was committed. A soft invocation whose guard fails returns
// false and no error; a strict one raises a *TransitionError. When no rule
// exists the missing-transition handler decides (see MissingHandler).
// Effect errors abort the transition in both modes.
func (d *Definition[T]) Invoke(
	ctx context.Context,
	subject T,
	action string,
	args []any,
	opts ...InvokeOption,
) (next State, ok bool, err error) {
	inv := &invocation[T]{
		id:      uuid.NewString(),
		action:  action,
		args:    args,
		target:  subject,
		mode:    Soft,
		outcome: outcomeSkipped,
	}

	for _, opt := range opts {
		switch o := opt.(type) {
		case Mode:
			inv.mode = o
		case targetOption[T]:
			inv.target = o.target
		case thenOption[T]:
			inv.then = o.fn
		default:
			return Absent, false, fmt.Errorf("%w: %T", ErrInvalidOption, opt)
		}
	}

	ctx, span := startInvokeSpan(ctx, d.subjectType, d.attribute, action, inv)
	start := time.Now()

	defer func() {
		if err != nil && inv.outcome == outcomeSkipped {
			inv.outcome = outcomeError
		}

		endInvokeSpan(span, inv, err)
		recordInvocation(d.subjectType, d.attribute, action, inv.outcome, time.Since(start))
	}()

	run := func() error {
		state, committed, runErr := d.transition(ctx, inv)
		next, ok = state, committed

		return runErr
	}

	if d.wrapper == nil {
		err = run()
	} else {
		err = d.wrapper(ctx, inv.target, run)
	}

	return next, ok, err
}

// transition is the guard-effect-commit sequence the wrapper wraps.
func (d *Definition[T]) transition(ctx context.Context, inv *invocation[T]) (State, bool, error) {
	target := inv.target
	current := StateOf(target.State(d.attribute))
	inv.from = current

	rule, found := d.table.Lookup(inv.action, current)
	if !found {
		inv.outcome = outcomeMissing

		return Absent, false, d.missingTransition(ctx, inv, current)
	}

	if !rule.guard.evaluate(target, inv.args) {
		inv.outcome = outcomeRejected

		if d.logger != nil {
			d.logger.TransitionRejected(ctx, d.event(inv, nil))
		}

		if inv.mode == Strict {
			return Absent, false, d.transitionError(inv.action, current, ReasonGuard, inv.mode, nil)
		}

		return Absent, false, nil
	}

	err := rule.runEffects(target, inv.args)
	if err != nil {
		inv.outcome = outcomeError
		err = logger.AnnotateError(
			fmt.Errorf("%s.%s: %s from %s: %w", d.subjectType, d.attribute, inv.action, current, err),
			"invocation_id", inv.id,
		)

		if d.logger != nil {
			d.logger.TransitionRejected(ctx, d.event(inv, err))
		}

		return Absent, false, err
	}

	next := rule.destination(target, inv.args)
	target.SetState(d.attribute, next)
	inv.to = next
	inv.outcome = outcomeCommitted

	if inv.then != nil {
		inv.then(target, inv.args...)
	}

	if d.logger != nil {
		d.logger.TransitionExecuted(ctx, d.event(inv, nil))
	}

	return next, true, nil
}

func (d *Definition[T]) missingTransition(ctx context.Context, inv *invocation[T], current State) error {
	herr := d.missing(ctx, MissingTransition{
		SubjectType: d.subjectType,
		Attribute:   d.attribute,
		Action:      inv.action,
		State:       current,
		Mode:        inv.mode,
	})

	if d.logger != nil {
		d.logger.TransitionMissing(ctx, d.event(inv, herr))
	}

	var transitionErr *TransitionError

	switch {
	case inv.mode == Strict:
		cause := herr
		if errors.Is(herr, ErrNoTransition) {
			cause = nil
		}

		return d.transitionError(inv.action, current, ReasonMissing, inv.mode, cause)
	case herr == nil:
		return nil
	case errors.As(herr, &transitionErr):
		return herr
	case errors.Is(herr, ErrNoTransition):
		return d.transitionError(inv.action, current, ReasonMissing, inv.mode, nil)
	default:
		return herr
	}
}

func (d *Definition[T]) event(inv *invocation[T], err error) Event {
	return Event{
		SubjectType:  d.subjectType,
		Attribute:    d.attribute,
		Action:       inv.action,
		From:         inv.from,
		To:           inv.to,
		Mode:         inv.mode,
		InvocationID: inv.id,
		Err:          err,
	}
}

// Can reports whether action would currently succeed for subject: a rule
// exists from its current state and the guard passes. Nothing is executed
// or committed and the wrapper is not involved.
func (d *Definition[T]) Can(subject T, action string, args ...any) bool {
	rule, ok := d.table.Lookup(action, StateOf(subject.State(d.attribute)))
	if !ok {
		return false
	}

	return rule.guard.evaluate(subject, args)
}

// Available lists, in declaration order, every action Can would allow.
func (d *Definition[T]) Available(subject T, args ...any) []string {
	var out []string

	for _, action := range d.table.actions {
		if d.Can(subject, action, args...) {
			out = append(out, action)
		}
	}

	return out
}
