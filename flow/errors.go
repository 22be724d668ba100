package flow

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrTransitionFailed is the base of every error raised by a strict invocation.
	ErrTransitionFailed = errors.New("transition failed")
	// ErrNoTransition indicates that no rule exists for the current (action, state) pair.
	ErrNoTransition = errors.New("no transition defined for current state")
	// ErrGuardRejected indicates that a guard prevented the transition.
	ErrGuardRejected = errors.New("guard prevented transition")
	// ErrUnknownFlow indicates that no flow is defined for an attribute.
	ErrUnknownFlow = errors.New("no flow defined for attribute")
	// ErrInvalidOption indicates an invocation option built for another subject type.
	ErrInvalidOption = errors.New("invalid invocation option")

	// ErrEmptyName indicates that a state, action or attribute name is empty.
	ErrEmptyName = errors.New("name is required")
	// ErrNoSourceState indicates an action declared outside a state scope without explicit source states.
	ErrNoSourceState = errors.New("action declared without source state")
	// ErrNoDestination indicates an action declared without a destination.
	ErrNoDestination = errors.New("action declared without destination")
	// ErrDuplicateDestination indicates that both a literal and a computed destination were given.
	ErrDuplicateDestination = errors.New("action destination already declared")
	// ErrGuardAlreadySet indicates that an action was given more than one guard.
	ErrGuardAlreadySet = errors.New("action guard already declared")
	// ErrInvalidGuard indicates a malformed guard.
	ErrInvalidGuard = errors.New("invalid guard")
	// ErrUnknownMethod indicates a named guard, effect or destination that does not exist on the subject type.
	ErrUnknownMethod = errors.New("method not found on subject type")
	// ErrInvalidMethod indicates a named method with an unsupported signature.
	ErrInvalidMethod = errors.New("method has unsupported signature")
	// ErrUnknownAttribute indicates a dependency on an attribute without a flow.
	ErrUnknownAttribute = errors.New("unknown cooperating attribute")
	// ErrUnknownState indicates a dependency on a state its attribute never declares.
	ErrUnknownState = errors.New("state not declared by cooperating attribute")
	// ErrRuleNotFound indicates a guard attached to an action that has no rule for a state.
	ErrRuleNotFound = errors.New("no rule declared for action and state")
	// ErrDuplicateFlow indicates a second flow for the same subject type and attribute.
	ErrDuplicateFlow = errors.New("flow already defined for attribute")
	// ErrExtensionType indicates an extension block that does not match the flow's subject type.
	ErrExtensionType = errors.New("extension block has wrong subject type")

	// ErrConfigNameRequired indicates that a configuration name is required.
	ErrConfigNameRequired = errors.New("config name is required")
	// ErrConfigAttributeRequired indicates that a configuration attribute is required.
	ErrConfigAttributeRequired = errors.New("config attribute is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrActionNameRequired indicates that an action name is required.
	ErrActionNameRequired = errors.New("action name is required")
	// ErrInvalidMergePolicy indicates an unknown merge policy name in a configuration.
	ErrInvalidMergePolicy = errors.New("invalid merge policy")
	// ErrNoConfigLoader indicates that no config loader is registered.
	ErrNoConfigLoader = errors.New("no config loader registered; use SetConfigLoader() or provide a file path")
)

// Mode selects how an invocation reports a transition that did not happen.
type Mode int

const (
	// Soft returns "no result" when a guard rejects the transition.
	Soft Mode = iota
	// Strict raises a *TransitionError for any missing rule or guard rejection.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}

	return "soft"
}

// Reason distinguishes why a strict invocation failed.
type Reason int

const (
	// ReasonMissing means no rule was declared for the current state.
	ReasonMissing Reason = iota + 1
	// ReasonGuard means a rule exists but its guard did not pass.
	ReasonGuard
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonGuard:
		return "guard"
	default:
		return "unknown"
	}
}

func (r Reason) sentinel() error {
	if r == ReasonGuard {
		return ErrGuardRejected
	}

	return ErrNoTransition
}

// ScopeError is the error class of one subject type. Every TransitionError
// raised for that subject type matches it with errors.Is, and it matches
// ErrTransitionFailed in turn, so callers may catch either.
type ScopeError struct {
	SubjectType string
}

func (e *ScopeError) Error() string {
	return e.SubjectType + ": " + ErrTransitionFailed.Error()
}

func (e *ScopeError) Unwrap() error {
	return ErrTransitionFailed
}

// TransitionError reports a transition that a strict invocation could not perform.
type TransitionError struct {
	SubjectType string
	Attribute   string
	Action      string
	State       State
	Reason      Reason
	Mode        Mode
	Err         error

	scope *ScopeError
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s.%s: cannot %s from state %s", e.SubjectType, e.Attribute, e.Action, e.State)

	switch e.Reason {
	case ReasonGuard:
		msg += ": " + ErrGuardRejected.Error()
	default:
		msg += ": " + ErrNoTransition.Error()
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *TransitionError) Unwrap() []error {
	errs := []error{e.Reason.sentinel()}

	if e.scope != nil {
		errs = append(errs, e.scope)
	} else {
		errs = append(errs, ErrTransitionFailed)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// DeclarationError wraps an error raised while a flow was being declared.
type DeclarationError struct {
	SubjectType string
	Attribute   string
	Action      string
	Err         error
}

func (e *DeclarationError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("flow %s.%s: %v", e.SubjectType, e.Attribute, e.Err)
	}

	return fmt.Sprintf("flow %s.%s: action %s: %v", e.SubjectType, e.Attribute, e.Action, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is a strict-mode guard rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrGuardRejected)
}

// IsMissing reports whether err reports an undeclared transition.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNoTransition)
}
