package flow

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Object is a thread-safe Subject that keeps its attribute states in a map.
// It also implements sync.Locker so the Locking wrapper can serialize
// invocations on it; that lock is separate from the one guarding its data.
type Object struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	states    map[string]State
	data      map[string]any
	history   []Change
	updatedAt time.Time

	exec    sync.Mutex
	version atomic.Uint64
}

// Change records one committed state change of an Object.
type Change struct {
	Attribute string
	From      State
	To        State
	Timestamp time.Time
}

var (
	_ Subject     = (*Object)(nil)
	_ sync.Locker = (*Object)(nil)
)

// NewObject creates an object with the given initial attribute states.
func NewObject(initial map[string]State) *Object {
	now := time.Now()

	obj := &Object{
		ID:        uuid.NewString(),
		CreatedAt: now,
		states:    make(map[string]State, len(initial)),
		data:      make(map[string]any),
		updatedAt: now,
	}

	for attr, s := range initial {
		obj.states[attr] = StateOf(s)
	}

	return obj
}

// State returns attribute's current state; Absent when it was never set.
func (o *Object) State(attribute string) State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.states[attribute]
}

// SetState stores attribute's new state and records the change.
func (o *Object) SetState(attribute string, state State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()

	o.history = append(o.history, Change{
		Attribute: attribute,
		From:      o.states[attribute],
		To:        state,
		Timestamp: now,
	})
	o.states[attribute] = state
	o.updatedAt = now
	o.version.Inc()
}

// States returns a copy of every attribute state.
func (o *Object) States() map[string]State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return maps.Clone(o.states)
}

// History returns the committed changes in order.
func (o *Object) History() []Change {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return slices.Clone(o.history)
}

// Version counts committed state changes.
func (o *Object) Version() uint64 {
	return o.version.Load()
}

// UpdatedAt returns the time of the last data or state change.
func (o *Object) UpdatedAt() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.updatedAt
}

// Get retrieves a value from the object's data.
func (o *Object) Get(key string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	val, ok := o.data[key]

	return val, ok
}

// Set stores a value in the object's data.
func (o *Object) Set(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.data[key] = value
	o.updatedAt = time.Now()
}

// GetString retrieves a string value from the object's data.
func (o *Object) GetString(key string) (string, bool) {
	val, ok := o.Get(key)
	if !ok {
		return "", false
	}

	str, ok := val.(string)

	return str, ok
}

// GetBool retrieves a boolean value from the object's data.
func (o *Object) GetBool(key string) (bool, bool) {
	val, ok := o.Get(key)
	if !ok {
		return false, false
	}

	b, ok := val.(bool)

	return b, ok
}

// GetInt retrieves an integer value from the object's data.
func (o *Object) GetInt(key string) (int, bool) {
	val, ok := o.Get(key)
	if !ok {
		return 0, false
	}

	i, ok := val.(int)

	return i, ok
}

// Merge copies data into the object's data.
func (o *Object) Merge(data map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	maps.Copy(o.data, data)

	o.updatedAt = time.Now()
}

// Lock acquires the object's invocation lock.
func (o *Object) Lock() {
	o.exec.Lock()
}

// Unlock releases the object's invocation lock.
func (o *Object) Unlock() {
	o.exec.Unlock()
}
