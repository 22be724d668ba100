package flow

import (
	"context"

	"github.com/alitto/pond/v2"
)

const defaultBatchWorkers = 10

// BatchResult is the outcome of one subject of InvokeAll.
type BatchResult[T Subject] struct {
	Subject T
	State   State
	OK      bool
	Err     error
}

// InvokeAll performs action on every subject with at most workers
// invocations in flight (10 when workers is not positive). Results are in
// subject order. Subjects not yet started when ctx is done report ctx's error.
// A panic during an invocation is reported as that subject's error, which
// wraps pond.ErrPanic. Invocations on the same subject are not serialized
// unless the flow uses a wrapper such as Locking.
func (d *Definition[T]) InvokeAll(
	ctx context.Context,
	subjects []T,
	action string,
	args []any,
	workers int,
	opts ...InvokeOption,
) []BatchResult[T] {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}

	results := make([]BatchResult[T], len(subjects))
	tasks := make([]pond.Task, len(subjects))
	pool := pond.NewPool(workers)

	for i, subject := range subjects {
		results[i].Subject = subject

		tasks[i] = pool.Submit(func() {
			if err := ctx.Err(); err != nil {
				results[i].Err = err

				return
			}

			results[i].State, results[i].OK, results[i].Err = d.Invoke(ctx, subject, action, args, opts...)
		})
	}

	pool.StopAndWait()

	// A panicking invocation is recovered by the pool and only surfaces here.
	for i, task := range tasks {
		if err := task.Wait(); err != nil {
			results[i].State, results[i].OK, results[i].Err = Absent, false, err
		}
	}

	return results
}
