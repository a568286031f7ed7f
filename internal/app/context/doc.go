// Package context captures the ambient execution context of a submitting
// goroutine and re-establishes it on the managed thread that later runs the
// submitted work.
//
// The protocol has three phases:
//
//	snap := provider.Capture(ctx, props)         // at submission
//	restorePoint, err := provider.Install(wctx, snap) // on the worker, before the task
//	provider.Restore(wctx, restorePoint)          // on the worker, after the task
//
// Install verifies that the application owning the captured invocation is
// still enabled and fails with domain.ErrIllegalState, touching nothing, when
// it is not. Restore undoes the install and runs a best-effort transaction
// cleanup; it never fails.
//
// Run wraps Install and Restore as a scoped acquisition so the thread is
// restored on every exit path, including a panic in the task body:
//
//	err := provider.Run(wctx, snap, func(ctx context.Context) error {
//	    return task(ctx)
//	})
//
// Worker contexts must carry the managed thread (ports.WithThread). The
// provider holds no locks: each thread is confined to one goroutine at a
// time, which is what makes concurrent use from many workers safe.
package context
