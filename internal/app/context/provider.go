package context

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// Dependencies are the collaborators a provider acts through. They are
// process-local and are never part of a ProviderDescriptor.
type Dependencies struct {
	Invocations  ports.InvocationManager
	Security     ports.SecurityContextManager
	ClassLoaders ports.ClassLoaderManager
	Applications ports.Applications
	Deployment   ports.Deployment

	// Transactions is optional. Without it install and restore skip all
	// transaction handling.
	Transactions ports.TransactionManager
}

func (d Dependencies) validate() error {
	switch {
	case d.Invocations == nil:
		return domain.NewValidationError("invocations", "invocation manager is required")
	case d.Security == nil:
		return domain.NewValidationError("security", "security context manager is required")
	case d.ClassLoaders == nil:
		return domain.NewValidationError("class_loaders", "class loader manager is required")
	case d.Applications == nil:
		return domain.NewValidationError("applications", "application lookup is required")
	case d.Deployment == nil:
		return domain.NewValidationError("deployment", "deployment status is required")
	}

	return nil
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder reports protocol events to r.
func WithRecorder(r Recorder) Option {
	return func(p *Provider) {
		if r != nil {
			p.recorder = r
		}
	}
}

// Provider captures, installs and restores ambient context. The set of
// managed categories is fixed at construction. A Provider is safe for
// concurrent use by any number of managed threads.
type Provider struct {
	deps       Dependencies
	categories categorySet
	factory    *InvocationFactory
	logger     *slog.Logger
	recorder   Recorder
}

// New creates a provider managing the given categories.
func New(deps Dependencies, categories []Category, opts ...Option) (*Provider, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	set := newCategorySet(categories)

	p := &Provider{
		deps:       deps,
		categories: set,
		factory:    NewInvocationFactory(set.naming),
		logger:     slog.Default(),
		recorder:   nopRecorder{},
	}

	for _, opt := range opts {
		opt(p)
	}

	if set.workArea {
		p.logger.Info("work-area propagation requested but not supported; category has no effect",
			slog.String("component", "context-provider"),
		)
	}

	return p, nil
}

// Categories returns the managed categories in canonical order.
func (p *Provider) Categories() []Category {
	return p.categories.list()
}

// Capture records the calling thread's ambient context. The class loader and
// security context are read only when their categories are enabled. The
// current invocation, if any, is always captured as a derived copy.
// Capture reads thread state but never changes it.
func (p *Provider) Capture(ctx context.Context, props map[string]string) *Snapshot {
	snap := &Snapshot{kind: KindCaptured, properties: maps.Clone(props)}

	if p.categories.classLoading {
		snap.classLoader = p.deps.ClassLoaders.ContextClassLoader(ctx)
	}

	if p.categories.security {
		snap.security = p.deps.Security.CurrentSecurityContext(ctx)
	}

	snap.invocation = p.factory.Derive(p.deps.Invocations.CurrentInvocation(ctx))

	p.recorder.Captured()
	p.log(ctx).Log(ctx, logging.LevelTrace, "context captured",
		slog.String("app", snap.appName()),
		slog.String(PropertyIdentityName, snap.IdentityName()),
	)

	return snap
}

// Install makes a captured snapshot the thread's current context and
// returns a restore point for Restore.
//
// Install fails with a *domain.IllegalStateError when the snapshot belongs to
// an application that is no longer deployed or enabled, and with ErrNoThread
// when ctx carries no managed thread. Failed installs leave the thread
// exactly as it was. An unrecognized handle is logged and yields a nil
// restore point and no error.
func (p *Provider) Install(ctx context.Context, handle Handle) (Handle, error) {
	log := p.log(ctx)

	snap, ok := handle.(*Snapshot)
	if !ok || snap == nil || snap.kind != KindCaptured {
		log.WarnContext(ctx, "ignoring unrecognized context handle on install", slog.String("kind", kindOf(handle)))
		p.recorder.Installed(InstallUnrecognized)

		return nil, nil
	}

	thread, ok := ports.ThreadFromContext(ctx)
	if !ok {
		p.recorder.Installed(InstallNoThread)
		return nil, ErrNoThread
	}

	if err := p.checkLiveness(ctx, snap); err != nil {
		log.WarnContext(ctx, "refusing to install stale context",
			slog.String("app", snap.appName()),
			slog.String("thread", thread.String()),
			slog.Any("error", err),
		)
		p.recorder.Installed(InstallStale)

		return nil, err
	}

	// The key is built before any slot changes hands so a failure here
	// leaves the thread untouched.
	var key *domain.IdentityKey
	if rec := snap.invocation; rec != nil {
		key = domain.NewIdentityKey(rec.Instance, thread)
	}

	restore := &Snapshot{
		kind:       KindRestorePoint,
		invocation: snap.invocation,
		properties: snap.properties,
	}

	if snap.classLoader != nil {
		restore.classLoader = p.deps.ClassLoaders.SetContextClassLoader(ctx, snap.classLoader)
		restore.loaderSwapped = true
	}

	if snap.security != nil {
		restore.security = p.deps.Security.CurrentSecurityContext(ctx)
		p.deps.Security.SetSecurityContext(ctx, snap.security)
		restore.securitySwapped = true
	}

	if rec := snap.invocation; rec != nil {
		if err := p.deps.Invocations.Push(ctx, rec); err != nil {
			p.restoreSlots(ctx, restore)
			p.recorder.Installed(InstallFailed)

			return nil, fmt.Errorf("pushing invocation: %w", err)
		}

		rec.ResourceTableKey = key
	}

	if p.deps.Transactions != nil {
		p.deps.Transactions.ClearThreadTransaction(ctx)
	}

	p.recorder.Installed(InstallInstalled)
	log.DebugContext(ctx, "context installed",
		slog.String("app", snap.appName()),
		slog.String("thread", thread.String()),
		slog.String(PropertyIdentityName, snap.IdentityName()),
	)

	return restore, nil
}

// Restore reverses the install that produced handle and clears any
// transaction the task left on the thread. A still-active transaction is
// committed and a rollback-only one is rolled back; failures are logged and
// swallowed. Handles other than restore points are logged and ignored.
func (p *Provider) Restore(ctx context.Context, handle Handle) {
	log := p.log(ctx)

	snap, ok := handle.(*Snapshot)
	if !ok || snap == nil || snap.kind != KindRestorePoint {
		log.WarnContext(ctx, "ignoring unrecognized context handle on restore", slog.String("kind", kindOf(handle)))
		return
	}

	p.restoreSlots(ctx, snap)

	if rec := snap.invocation; rec != nil {
		if err := p.deps.Invocations.Pop(ctx, rec); err != nil {
			log.ErrorContext(ctx, "failed to pop propagated invocation",
				slog.String("component_id", rec.ComponentID),
				slog.Any("error", err),
			)
		}
	}

	p.cleanupTransaction(ctx)
	p.recorder.Restored()
}

// Run installs handle, calls fn and restores the thread on every exit path.
// A panic in fn propagates after the thread has been restored. When handle
// is unrecognized fn runs with the thread's context unchanged.
func (p *Provider) Run(ctx context.Context, handle Handle, fn func(ctx context.Context) error) error {
	restore, err := p.Install(ctx, handle)
	if err != nil {
		return err
	}

	if restore != nil {
		defer p.Restore(ctx, restore)
	}

	return fn(ctx)
}

func (p *Provider) checkLiveness(ctx context.Context, snap *Snapshot) error {
	name := snap.appName()
	if name == "" {
		return nil
	}

	app, ok := p.deps.Applications.LookupApplication(ctx, name)
	if !ok {
		return domain.NewIllegalStateError("install context", fmt.Sprintf("application %q is not deployed", name))
	}

	if !p.deps.Deployment.IsAppEnabled(ctx, app) {
		return domain.NewIllegalStateError("install context", fmt.Sprintf("application %q is disabled", name))
	}

	return nil
}

func (p *Provider) restoreSlots(ctx context.Context, snap *Snapshot) {
	if snap.loaderSwapped {
		p.deps.ClassLoaders.SetContextClassLoader(ctx, snap.classLoader)
	}

	if snap.securitySwapped {
		p.deps.Security.SetSecurityContext(ctx, snap.security)
	}
}

// clearTransaction detaches whatever transaction is left on the thread. It
// runs last in cleanupTransaction and recovers on its own.
func (p *Provider) clearTransaction(ctx context.Context, tm ports.TransactionManager) {
	defer func() {
		if r := recover(); r != nil {
			p.log(ctx).ErrorContext(ctx, "clearing thread transaction panicked", slog.Any("panic", r))
			p.recorder.TxCleanup(TxCleanupFailed)
		}
	}()

	tm.ClearThreadTransaction(ctx)
}

func (p *Provider) cleanupTransaction(ctx context.Context) {
	tm := p.deps.Transactions
	if tm == nil {
		return
	}

	log := p.log(ctx)

	defer p.clearTransaction(ctx, tm)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "transaction cleanup panicked", slog.Any("panic", r))
			p.recorder.TxCleanup(TxCleanupFailed)
		}
	}()

	tx, err := tm.CurrentTransaction(ctx)
	if err != nil {
		log.ErrorContext(ctx, "failed to read thread transaction", slog.Any("error", err))
		p.recorder.TxCleanup(TxCleanupFailed)

		return
	}

	if tx == nil {
		p.recorder.TxCleanup(TxCleanupNone)
		return
	}

	status, err := tx.Status()
	if err != nil {
		log.ErrorContext(ctx, "failed to read transaction status", slog.Any("error", err))
		p.recorder.TxCleanup(TxCleanupFailed)

		return
	}

	switch status {
	case domain.TxStatusActive:
		p.completeTransaction(ctx, log, TxCleanupCommit, tm.Commit)
	case domain.TxStatusMarkedRollback:
		p.completeTransaction(ctx, log, TxCleanupRollback, tm.Rollback)
	default:
		log.InfoContext(ctx, "leaving transaction left by task", slog.String("status", status.String()))
		p.recorder.TxCleanup(TxCleanupLeft)
	}
}

func (p *Provider) completeTransaction(ctx context.Context, log *slog.Logger, outcome string, complete func(context.Context) error) {
	if err := complete(ctx); err != nil {
		log.ErrorContext(ctx, "transaction cleanup failed",
			slog.String("action", outcome),
			slog.Any("error", err),
		)
		p.recorder.TxCleanup(TxCleanupFailed)

		return
	}

	log.DebugContext(ctx, "completed transaction left by task", slog.String("action", outcome))
	p.recorder.TxCleanup(outcome)
}

func (p *Provider) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, p.logger).With(slog.String("component", "context-provider"))
}

func kindOf(h Handle) string {
	if h == nil {
		return "<nil>"
	}

	if s, ok := h.(*Snapshot); ok && s == nil {
		return "<nil>"
	}

	return string(h.Kind())
}
