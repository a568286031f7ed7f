package ambient

import (
	"context"
	"log/slog"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

type invocationSlot struct{}

// InvocationManager keeps a stack of invocation records per thread.
type InvocationManager struct {
	logger *slog.Logger
}

var _ ports.InvocationManager = (*InvocationManager)(nil)

// NewInvocationManager creates an invocation manager.
func NewInvocationManager(logger *slog.Logger) *InvocationManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &InvocationManager{logger: logger.With(slog.String("component", "invocation-manager"))}
}

// CurrentInvocation returns the record on top of the thread's stack.
func (m *InvocationManager) CurrentInvocation(ctx context.Context) *domain.InvocationRecord {
	stack := stackOf(ctx)
	if len(stack) == 0 {
		return nil
	}

	return stack[len(stack)-1]
}

// Push makes record the thread's current invocation.
func (m *InvocationManager) Push(ctx context.Context, record *domain.InvocationRecord) error {
	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		return domain.NewIllegalStateError("push invocation", "no managed thread bound")
	}

	stack := stackOf(ctx)
	thread.SetLocal(invocationSlot{}, append(stack, record))

	m.logger.Log(ctx, logging.LevelTrace, "invocation pushed",
		slog.String("thread", thread.String()),
		slog.String("component_id", record.ComponentID),
		slog.Int("depth", len(stack)+1),
	)

	return nil
}

// Pop removes record from the top of the thread's stack. Popping anything
// other than the current invocation is rejected and leaves the stack intact.
func (m *InvocationManager) Pop(ctx context.Context, record *domain.InvocationRecord) error {
	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		return domain.NewIllegalStateError("pop invocation", "no managed thread bound")
	}

	stack := stackOf(ctx)
	if len(stack) == 0 || stack[len(stack)-1] != record {
		return domain.NewIllegalStateError("pop invocation", "record is not the current invocation")
	}

	stack[len(stack)-1] = nil
	stack = stack[:len(stack)-1]

	if len(stack) == 0 {
		thread.ClearLocal(invocationSlot{})
	} else {
		thread.SetLocal(invocationSlot{}, stack)
	}

	return nil
}

// Depth returns the number of records on the thread's stack.
func (m *InvocationManager) Depth(ctx context.Context) int {
	return len(stackOf(ctx))
}

func stackOf(ctx context.Context) []*domain.InvocationRecord {
	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		return nil
	}

	v, _ := thread.Local(invocationSlot{})
	stack, _ := v.([]*domain.InvocationRecord)

	return stack
}
