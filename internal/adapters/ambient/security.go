package ambient

import (
	"context"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

type (
	securitySlot    struct{}
	classLoaderSlot struct{}
)

// SecurityManager stores the caller identity of each thread.
type SecurityManager struct{}

var _ ports.SecurityContextManager = SecurityManager{}

// CurrentSecurityContext returns the thread's security context, or nil.
func (SecurityManager) CurrentSecurityContext(ctx context.Context) *domain.SecurityContext {
	sc, _ := slotValue(ctx, securitySlot{}).(*domain.SecurityContext)
	return sc
}

// SetSecurityContext replaces the thread's security context. A nil value
// clears it.
func (SecurityManager) SetSecurityContext(ctx context.Context, sc *domain.SecurityContext) {
	setSlot(ctx, securitySlot{}, sc, sc == nil)
}

// ClassLoaderManager stores the context class loader of each thread.
type ClassLoaderManager struct{}

var _ ports.ClassLoaderManager = ClassLoaderManager{}

// ContextClassLoader returns the thread's class loader, or nil.
func (ClassLoaderManager) ContextClassLoader(ctx context.Context) *domain.ClassLoader {
	cl, _ := slotValue(ctx, classLoaderSlot{}).(*domain.ClassLoader)
	return cl
}

// SetContextClassLoader installs loader and returns the previous one.
func (m ClassLoaderManager) SetContextClassLoader(ctx context.Context, loader *domain.ClassLoader) *domain.ClassLoader {
	previous := m.ContextClassLoader(ctx)
	setSlot(ctx, classLoaderSlot{}, loader, loader == nil)

	return previous
}

func slotValue(ctx context.Context, key any) any {
	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		return nil
	}

	v, _ := thread.Local(key)

	return v
}

func setSlot(ctx context.Context, key, value any, clear bool) {
	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		return
	}

	if clear {
		thread.ClearLocal(key)
		return
	}

	thread.SetLocal(key, value)
}
