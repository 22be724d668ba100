package flow

import (
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// State is the canonical value of a subject attribute that a flow drives.
// Two states are equal iff their canonical forms are equal.
type State string

// Absent is the explicit "no state" sentinel. A subject whose attribute has
// never been set is in the Absent state, and transitions may be declared
// from it like from any other state.
const Absent State = ""

// String renders the state for logs and error messages.
func (s State) String() string {
	if s == Absent {
		return "<absent>"
	}

	return string(s)
}

// IsAbsent reports whether s is the Absent sentinel.
func (s State) IsAbsent() bool {
	return s == Absent
}

// StateOf canonicalizes an arbitrary value into a State. Textual values are
// NFC-normalized so that differently composed spellings of the same name
// compare equal, integers are rendered in decimal and nil maps to Absent.
func StateOf(value any) State {
	switch v := value.(type) {
	case nil:
		return Absent
	case State:
		return canonical(string(v))
	case string:
		return canonical(v)
	case []byte:
		return canonical(string(v))
	case int:
		return State(strconv.Itoa(v))
	case int8:
		return State(strconv.FormatInt(int64(v), 10))
	case int16:
		return State(strconv.FormatInt(int64(v), 10))
	case int32:
		return State(strconv.FormatInt(int64(v), 10))
	case int64:
		return State(strconv.FormatInt(v, 10))
	case uint:
		return State(strconv.FormatUint(uint64(v), 10))
	case uint8:
		return State(strconv.FormatUint(uint64(v), 10))
	case uint16:
		return State(strconv.FormatUint(uint64(v), 10))
	case uint32:
		return State(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return State(strconv.FormatUint(v, 10))
	case fmt.Stringer:
		return canonical(v.String())
	default:
		return canonical(fmt.Sprint(v))
	}
}

// States canonicalizes every value in values.
func States(values ...any) []State {
	out := make([]State, 0, len(values))

	for _, v := range values {
		out = append(out, StateOf(v))
	}

	return out
}

func canonical(s string) State {
	if norm.NFC.IsNormalString(s) {
		return State(s)
	}

	return State(norm.NFC.String(s))
}

// Subject is anything whose named attributes hold flow states. Callbacks
// (guards, effects, destination resolvers) execute against the subject.
type Subject interface {
	// State returns the current value of the named attribute.
	State(attribute string) State
	// SetState commits a new value for the named attribute.
	SetState(attribute string, state State)
}
