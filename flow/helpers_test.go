package flow

import (
	"fmt"
	"sync"
)

// ticket is the subject used by the package's tests.
type ticket struct {
	*Object

	mu      sync.Mutex
	ready   bool
	calls   []string
	lastArg []any
}

func newTicket(states map[string]State) *ticket {
	return &ticket{Object: NewObject(states)}
}

func (t *ticket) IsReady() bool {
	return t.ready
}

func (t *ticket) HasArgs(args ...any) bool {
	return len(args) > 0
}

func (t *ticket) Record(args ...any) error {
	t.record("effect", args)

	return nil
}

func (t *ticket) Pick(args ...any) State {
	t.record("resolve", args)

	if len(args) == 0 {
		return "unassigned"
	}

	return StateOf(args[0])
}

func (t *ticket) TakesInt(int) bool {
	return true
}

func (t *ticket) ReturnsString() string {
	return ""
}

func (t *ticket) record(kind string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, fmt.Sprintf("%s%v", kind, args))
	t.lastArg = args
}

func (t *ticket) callLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.calls...)
}

// recordingEffect appends name to log every time it runs.
func recordingEffect(log *[]string, name string) Effect[*ticket] {
	return func(_ *ticket, _ ...any) error {
		*log = append(*log, name)

		return nil
	}
}
