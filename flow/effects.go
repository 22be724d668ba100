package flow

import "fmt"

// Effect is a side effect run against the target subject with the
// invocation arguments, before the destination state is committed. A
// non-nil error aborts the transition.
type Effect[T Subject] func(subject T, args ...any) error

// Resolver computes a destination state at invocation time.
type Resolver[T Subject] func(subject T, args ...any) State

// Chain composes effects into one that runs them in order and stops at the
// first failure.
func Chain[T Subject](effects ...Effect[T]) Effect[T] {
	return func(subject T, args ...any) error {
		for i, effect := range effects {
			err := effect(subject, args...)
			if err != nil {
				return fmt.Errorf("effect %d failed: %w", i, err)
			}
		}

		return nil
	}
}
