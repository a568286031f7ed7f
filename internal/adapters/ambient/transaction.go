package ambient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

type transactionSlot struct{}

// Transaction is an in-memory transaction. Its status may be read from any
// goroutine.
type Transaction struct {
	id string

	mu     sync.Mutex
	status domain.TxStatus
}

var _ ports.Transaction = (*Transaction)(nil)

// ID returns the transaction identifier.
func (t *Transaction) ID() string {
	return t.id
}

// Status returns the current status.
func (t *Transaction) Status() (domain.TxStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status, nil
}

// SetRollbackOnly marks an active transaction for rollback.
func (t *Transaction) SetRollbackOnly() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != domain.TxStatusActive && t.status != domain.TxStatusMarkedRollback {
		return domain.NewIllegalStateError("set rollback only", "transaction is "+t.status.String())
	}

	t.status = domain.TxStatusMarkedRollback

	return nil
}

func (t *Transaction) complete(from []domain.TxStatus, to domain.TxStatus, op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range from {
		if t.status == s {
			t.status = to
			return nil
		}
	}

	return domain.NewIllegalStateError(op, "transaction is "+t.status.String())
}

// TransactionManager associates at most one transaction with each thread.
type TransactionManager struct {
	logger *slog.Logger
}

var _ ports.TransactionManager = (*TransactionManager)(nil)

// NewTransactionManager creates a transaction manager.
func NewTransactionManager(logger *slog.Logger) *TransactionManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &TransactionManager{logger: logger.With(slog.String("component", "transaction-manager"))}
}

// Begin starts a transaction on the calling thread.
func (m *TransactionManager) Begin(ctx context.Context) (*Transaction, error) {
	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		return nil, domain.NewIllegalStateError("begin transaction", "no managed thread bound")
	}

	if _, exists := thread.Local(transactionSlot{}); exists {
		return nil, domain.NewIllegalStateError("begin transaction", "thread already has a transaction")
	}

	tx := &Transaction{id: uuid.NewString(), status: domain.TxStatusActive}
	thread.SetLocal(transactionSlot{}, tx)

	m.logger.DebugContext(ctx, "transaction started",
		slog.String("tx_id", tx.id),
		slog.String("thread", thread.String()),
	)

	return tx, nil
}

// CurrentTransaction returns the thread's transaction, or nil.
func (m *TransactionManager) CurrentTransaction(ctx context.Context) (ports.Transaction, error) {
	tx := m.current(ctx)
	if tx == nil {
		return nil, nil
	}

	return tx, nil
}

// Commit commits the thread's transaction and dissociates it.
func (m *TransactionManager) Commit(ctx context.Context) error {
	tx := m.current(ctx)
	if tx == nil {
		return domain.NewIllegalStateError("commit", "no transaction associated with thread")
	}

	if err := tx.complete([]domain.TxStatus{domain.TxStatusActive}, domain.TxStatusCommitted, "commit"); err != nil {
		return err
	}

	m.ClearThreadTransaction(ctx)

	return nil
}

// Rollback rolls back the thread's transaction and dissociates it.
func (m *TransactionManager) Rollback(ctx context.Context) error {
	tx := m.current(ctx)
	if tx == nil {
		return domain.NewIllegalStateError("rollback", "no transaction associated with thread")
	}

	from := []domain.TxStatus{domain.TxStatusActive, domain.TxStatusMarkedRollback}
	if err := tx.complete(from, domain.TxStatusRolledBack, "rollback"); err != nil {
		return err
	}

	m.ClearThreadTransaction(ctx)

	return nil
}

// ClearThreadTransaction drops the thread's association. The transaction
// itself is left in whatever state it is in.
func (m *TransactionManager) ClearThreadTransaction(ctx context.Context) {
	if thread, ok := ports.ThreadFromContext(ctx); ok {
		thread.ClearLocal(transactionSlot{})
	}
}

func (m *TransactionManager) current(ctx context.Context) *Transaction {
	tx, _ := slotValue(ctx, transactionSlot{}).(*Transaction)
	return tx
}
