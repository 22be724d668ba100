package flow

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Machine groups the flows of one subject type by attribute.
type Machine[T Subject] struct {
	registry *Registry
	opts     []Option[T]

	mu    sync.RWMutex
	flows map[string]*Definition[T]
	order []string
}

// NewMachine creates a machine whose flows are built against registry with
// opts applied before each flow's own options.
func NewMachine[T Subject](registry *Registry, opts ...Option[T]) *Machine[T] {
	return &Machine[T]{
		registry: registry,
		opts:     opts,
		flows:    make(map[string]*Definition[T]),
	}
}

// Define declares the flow for attribute. See Define.
func (m *Machine[T]) Define(attribute string, block Block[T], opts ...Option[T]) (*Definition[T], error) {
	def, err := Define(m.registry, attribute, block, slices.Concat(m.opts, opts)...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.flows[attribute]; exists {
		return nil, def.env(false).wrap("", ErrDuplicateFlow)
	}

	m.flows[attribute] = def
	m.order = append(m.order, attribute)

	return def, nil
}

// DefineConfig declares the flow described by cfg.
func (m *Machine[T]) DefineConfig(cfg *Config, opts ...Option[T]) (*Definition[T], error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return m.Define(cfg.Attribute, ConfigBlock[T](cfg), append([]Option[T]{PolicyOption[T](cfg)}, opts...)...)
}

// Flow returns the flow for attribute.
func (m *Machine[T]) Flow(attribute string) (*Definition[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.flows[attribute]

	return def, ok
}

// Attributes returns the defined attributes in definition order.
func (m *Machine[T]) Attributes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.order)
}

// Invoke performs action on subject's attribute. See Definition.Invoke.
func (m *Machine[T]) Invoke(
	ctx context.Context,
	subject T,
	attribute, action string,
	args []any,
	opts ...InvokeOption,
) (State, bool, error) {
	def, err := m.lookup(attribute)
	if err != nil {
		return Absent, false, err
	}

	return def.Invoke(ctx, subject, action, args, opts...)
}

// Can reports whether action on attribute would currently succeed.
// Unknown attributes report false.
func (m *Machine[T]) Can(subject T, attribute, action string, args ...any) bool {
	def, err := m.lookup(attribute)
	if err != nil {
		return false
	}

	return def.Can(subject, action, args...)
}

// Available lists the actions on attribute that would currently succeed.
func (m *Machine[T]) Available(subject T, attribute string, args ...any) ([]string, error) {
	def, err := m.lookup(attribute)
	if err != nil {
		return nil, err
	}

	return def.Available(subject, args...), nil
}

func (m *Machine[T]) lookup(attribute string) (*Definition[T], error) {
	def, ok := m.Flow(attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownFlow, SubjectTypeOf[T](), attribute)
	}

	return def, nil
}
