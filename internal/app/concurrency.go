package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// InvokeAll submits every fn to exec and waits for all of them. It returns
// on the first failure, cancelling the tasks still queued or running.
//
// Example:
//
//	totals, err := InvokeAll(ctx, exec,
//	    func(ctx context.Context) (int, error) { return orders.Total(ctx, "eu") },
//	    func(ctx context.Context) (int, error) { return orders.Total(ctx, "us") },
//	)
func InvokeAll[T any](ctx context.Context, exec *ManagedExecutor, fns ...func(context.Context) (T, error)) ([]T, error) {
	futures, err := submitAll(ctx, exec, fns)
	if err != nil {
		return nil, fmt.Errorf("invoke all: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]T, len(futures))

	for i, f := range futures {
		g.Go(func() error {
			v, err := f.Get(gctx)
			if err != nil {
				return err
			}

			results[i], _ = v.(T)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		cancelAll(futures)
		return nil, fmt.Errorf("invoke all: %w", err)
	}

	return results, nil
}

// PartialResult holds a result or an error for partial success patterns.
type PartialResult[T any] struct {
	Value T
	Err   error
}

// InvokeAllPartial submits every fn to exec and collects every outcome.
// Unlike InvokeAll, one failure does not cancel the others. A function that
// could not be submitted reports its submit error in place.
//
// Example:
//
//	results := InvokeAllPartial(ctx, exec, reportFuncs...)
//	for _, r := range results {
//	    if r.Err != nil && app.IsStartFailure(r.Err) {
//	        // the application went away before the report ran
//	    }
//	}
func InvokeAllPartial[T any](ctx context.Context, exec *ManagedExecutor, fns ...func(context.Context) (T, error)) []PartialResult[T] {
	results := make([]PartialResult[T], len(fns))
	futures := make([]*Future, len(fns))

	for i, fn := range fns {
		f, err := exec.Submit(ctx, wrapTask(fn))
		if err != nil {
			results[i].Err = err
			continue
		}

		futures[i] = f
	}

	var g errgroup.Group

	for i, f := range futures {
		if f == nil {
			continue
		}

		g.Go(func() error {
			v, err := f.Get(ctx)
			results[i].Value, _ = v.(T)
			results[i].Err = err

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func submitAll[T any](ctx context.Context, exec *ManagedExecutor, fns []func(context.Context) (T, error)) ([]*Future, error) {
	futures := make([]*Future, 0, len(fns))

	for _, fn := range fns {
		f, err := exec.Submit(ctx, wrapTask(fn))
		if err != nil {
			cancelAll(futures)
			return nil, err
		}

		futures = append(futures, f)
	}

	return futures, nil
}

func wrapTask[T any](fn func(context.Context) (T, error)) Task {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

func cancelAll(futures []*Future) {
	for _, f := range futures {
		f.Cancel()
	}
}
