package flow

import (
	"context"
	"slices"
	"sync"
)

// Flow is the type-erased view of a Definition held by a Registry.
type Flow interface {
	SubjectType() string
	Attribute() string
	States() []State
	Actions() []string
	Describe() []RuleInfo
	Fingerprint() uint64

	mergeExtension(ctx context.Context, block any) error
}

var _ Flow = (*Definition[*Object])(nil)

// ExtensionApplied is published to subscribers when an extension registered
// after its flow was built has been merged into it.
type ExtensionApplied struct {
	SubjectType string
	Attribute   string
	Actions     []string
	States      []State
}

// Registry stores extension blocks, live flows and per-subject-type error
// classes. Registration is expected at start-up; all methods are safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	extensions  map[string][]any
	flows       map[string]Flow
	scopes      map[string]*ScopeError
	subscribers []func(ExtensionApplied)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extensions: make(map[string][]any),
		flows:      make(map[string]Flow),
		scopes:     make(map[string]*ScopeError),
	}
}

func registryKey(subjectType, attribute string) string {
	return subjectType + ":" + attribute
}

// RegisterExtension appends block to the extensions of subjectType's
// attribute. block must be a Block[T] (or func(*Declarer[T])) for the
// subject type. When the flow already exists the block is merged into it
// immediately; a block that fails to merge is not kept.
func (r *Registry) RegisterExtension(subjectType, attribute string, block any) error {
	if subjectType == "" || attribute == "" {
		return ErrEmptyName
	}

	key := registryKey(subjectType, attribute)

	r.mu.Lock()
	r.extensions[key] = append(r.extensions[key], block)
	existing, ok := r.flows[key]
	r.mu.Unlock()

	if !ok {
		return nil
	}

	err := existing.mergeExtension(context.Background(), block)
	if err != nil {
		r.mu.Lock()
		exts := r.extensions[key]
		r.extensions[key] = exts[:len(exts)-1]
		r.mu.Unlock()

		return err
	}

	r.publish(ExtensionApplied{
		SubjectType: subjectType,
		Attribute:   attribute,
		Actions:     existing.Actions(),
		States:      existing.States(),
	})

	return nil
}

// Extend registers a typed extension block for T's attribute.
func Extend[T Subject](registry *Registry, attribute string, block Block[T]) error {
	return registry.RegisterExtension(SubjectTypeOf[T](), attribute, block)
}

// Extensions returns the extension blocks of subjectType's attribute in
// registration order.
func (r *Registry) Extensions(subjectType, attribute string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.extensions[registryKey(subjectType, attribute)])
}

// Flow returns the flow defined for subjectType's attribute.
func (r *Registry) Flow(subjectType, attribute string) (Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flows[registryKey(subjectType, attribute)]

	return f, ok
}

// ScopeError returns the error class shared by every TransitionError raised
// for subjectType. The same pointer is returned on every call.
func (r *Registry) ScopeError(subjectType string) *ScopeError {
	r.mu.Lock()
	defer r.mu.Unlock()

	scope, ok := r.scopes[subjectType]
	if !ok {
		scope = &ScopeError{SubjectType: subjectType}
		r.scopes[subjectType] = scope
	}

	return scope
}

// Subscribe registers fn to be called after every retroactive extension merge.
func (r *Registry) Subscribe(fn func(ExtensionApplied)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers = append(r.subscribers, fn)
}

// Clear forgets every extension, flow and subscriber. Scope errors survive
// so errors.Is keeps matching values obtained earlier.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extensions = make(map[string][]any)
	r.flows = make(map[string]Flow)
	r.subscribers = nil
}

func (r *Registry) register(f Flow) error {
	key := registryKey(f.SubjectType(), f.Attribute())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[key]; exists {
		return ErrDuplicateFlow
	}

	r.flows[key] = f

	return nil
}

func (r *Registry) publish(event ExtensionApplied) {
	r.mu.RLock()
	subs := slices.Clone(r.subscribers)
	r.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}
