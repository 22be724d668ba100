package flow

import (
	"context"
	"sync"
)

// Locking returns a wrapper that holds the target's lock for the whole
// guard-effect-commit sequence when the target implements sync.Locker.
// Other targets run unlocked.
func Locking[T Subject]() Wrapper[T] {
	return func(_ context.Context, target T, run func() error) error {
		if locker, ok := any(target).(sync.Locker); ok {
			locker.Lock()
			defer locker.Unlock()
		}

		return run()
	}
}

// Skip returns a wrapper that only runs the transition when allow returns
// true. A skipped invocation leaves the target unchanged and reports no result.
func Skip[T Subject](allow func(ctx context.Context, target T) bool) Wrapper[T] {
	return func(ctx context.Context, target T, run func() error) error {
		if !allow(ctx, target) {
			return nil
		}

		return run()
	}
}
