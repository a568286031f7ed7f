package ports

import (
	"context"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
)

// InvocationManager owns the per-thread stack of invocation records.
type InvocationManager interface {
	// CurrentInvocation returns the top of the calling thread's stack, or nil.
	CurrentInvocation(ctx context.Context) *domain.InvocationRecord

	// Push makes record the current invocation of the calling thread.
	Push(ctx context.Context, record *domain.InvocationRecord) error

	// Pop removes record, which must be the current invocation.
	Pop(ctx context.Context, record *domain.InvocationRecord) error
}

// SecurityContextManager holds the caller identity of each thread.
type SecurityContextManager interface {
	CurrentSecurityContext(ctx context.Context) *domain.SecurityContext
	SetSecurityContext(ctx context.Context, sc *domain.SecurityContext)
}

// ClassLoaderManager holds the context class loader of each thread.
type ClassLoaderManager interface {
	ContextClassLoader(ctx context.Context) *domain.ClassLoader

	// SetContextClassLoader installs loader and returns the one it replaced.
	SetContextClassLoader(ctx context.Context, loader *domain.ClassLoader) *domain.ClassLoader
}

// Applications resolves deployed applications by name.
type Applications interface {
	LookupApplication(ctx context.Context, name string) (*domain.Application, bool)
}

// Deployment reports whether an application is currently running.
type Deployment interface {
	IsAppEnabled(ctx context.Context, app *domain.Application) bool
}

// Transaction is a transaction associated with a thread.
type Transaction interface {
	Status() (domain.TxStatus, error)
}

// TransactionManager manages the transaction association of each thread.
// Commit and Rollback act on the calling thread's current transaction.
type TransactionManager interface {
	// CurrentTransaction returns nil and no error when the thread has none.
	CurrentTransaction(ctx context.Context) (Transaction, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// ClearThreadTransaction drops the thread's association without
	// completing the transaction.
	ClearThreadTransaction(ctx context.Context)
}
