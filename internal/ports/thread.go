package ports

import (
	"context"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
)

type threadKey struct{}

// WithThread binds a managed thread to the context. Schedulers call this
// before handing the context to task code.
func WithThread(ctx context.Context, thread *domain.Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, thread)
}

// ThreadFromContext returns the managed thread bound to ctx.
func ThreadFromContext(ctx context.Context) (*domain.Thread, bool) {
	if ctx == nil {
		return nil, false
	}

	thread, ok := ctx.Value(threadKey{}).(*domain.Thread)

	return thread, ok && thread != nil
}
