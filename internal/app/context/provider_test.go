package context_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/ambient"
	"github.com/jsamuelsen/managed-concurrency/internal/adapters/deployment"
	mctx "github.com/jsamuelsen/managed-concurrency/internal/app/context"
	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/mocks"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

type fixture struct {
	invocations *ambient.InvocationManager
	security    ambient.SecurityManager
	loaders     ambient.ClassLoaderManager
	deployment  *deployment.Service
	tx          *ambient.TransactionManager
	recorder    *countingRecorder
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t testing.TB) *fixture {
	t.Helper()

	registry := deployment.NewRegistry([]domain.Application{
		{Name: "orders-app", Modules: []string{"orders-web"}, Enabled: true},
		{Name: "billing-app", Enabled: true},
	})

	return &fixture{
		invocations: ambient.NewInvocationManager(discardLogger()),
		deployment:  deployment.NewService(registry, deployment.NewMemoryStore(), discardLogger()),
		tx:          ambient.NewTransactionManager(discardLogger()),
		recorder:    &countingRecorder{installs: map[string]int{}, cleanups: map[string]int{}},
	}
}

func (f *fixture) deps() mctx.Dependencies {
	return mctx.Dependencies{
		Invocations:  f.invocations,
		Security:     f.security,
		ClassLoaders: f.loaders,
		Applications: f.deployment.Registry(),
		Deployment:   f.deployment,
		Transactions: f.tx,
	}
}

func (f *fixture) provider(t testing.TB, categories ...mctx.Category) *mctx.Provider {
	t.Helper()

	if categories == nil {
		categories = []mctx.Category{mctx.CategoryClassLoading, mctx.CategorySecurity, mctx.CategoryNaming}
	}

	p, err := mctx.New(f.deps(), categories, mctx.WithLogger(discardLogger()), mctx.WithRecorder(f.recorder))
	require.NoError(t, err)

	return p
}

type countingRecorder struct {
	mu       sync.Mutex
	captured int
	restored int
	installs map[string]int
	cleanups map[string]int
}

func (r *countingRecorder) Captured() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured++
}

func (r *countingRecorder) Installed(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installs[outcome]++
}

func (r *countingRecorder) Restored() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored++
}

func (r *countingRecorder) TxCleanup(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups[outcome]++
}

// threadCtx binds a fresh managed thread to a background context.
func threadCtx(name string) (context.Context, *domain.Thread) {
	thread := domain.NewThread(name)
	return ports.WithThread(context.Background(), thread), thread
}

var (
	appLoader   = &domain.ClassLoader{Name: "orders-loader", Application: "orders-app"}
	poolLoader  = &domain.ClassLoader{Name: "pool-loader"}
	alice       = &domain.SecurityContext{Principal: "alice", Roles: []string{"clerk"}, Credential: "s3cret"}
	ordersBean  = &struct{ name string }{name: "orders"}
	ordersNames = &domain.NamingEnvironment{Bindings: map[string]any{"db/orders": "orders-ds"}}
)

// submitter returns a context whose thread looks like a request thread of
// orders-app: loader, identity and one invocation on the stack.
func (f *fixture) submitter(t testing.TB) context.Context {
	t.Helper()

	ctx, _ := threadCtx("submitter")
	f.loaders.SetContextClassLoader(ctx, appLoader)
	f.security.SetSecurityContext(ctx, alice)
	require.NoError(t, f.invocations.Push(ctx, &domain.InvocationRecord{
		ComponentID: "orders-web/OrderServlet",
		Type:        domain.InvocationServlet,
		AppName:     "orders-app",
		ModuleName:  "orders-web",
		Instance:    ordersBean,
		Naming:      ordersNames,
	}))

	return ctx
}

func TestNew(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		mutate  func(*mctx.Dependencies)
		wantErr bool
	}{
		{name: "all collaborators"},
		{name: "without transactions", mutate: func(d *mctx.Dependencies) { d.Transactions = nil }},
		{name: "missing invocations", mutate: func(d *mctx.Dependencies) { d.Invocations = nil }, wantErr: true},
		{name: "missing security", mutate: func(d *mctx.Dependencies) { d.Security = nil }, wantErr: true},
		{name: "missing class loaders", mutate: func(d *mctx.Dependencies) { d.ClassLoaders = nil }, wantErr: true},
		{name: "missing applications", mutate: func(d *mctx.Dependencies) { d.Applications = nil }, wantErr: true},
		{name: "missing deployment", mutate: func(d *mctx.Dependencies) { d.Deployment = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := f.deps()
			if tt.mutate != nil {
				tt.mutate(&deps)
			}

			p, err := mctx.New(deps, mctx.AllCategories)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				assert.Nil(t, p)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, mctx.AllCategories, p.Categories())
		})
	}
}

func TestProvider_Capture(t *testing.T) {
	f := newFixture(t)
	src := f.submitter(t)
	original := f.invocations.CurrentInvocation(src)

	t.Run("all categories", func(t *testing.T) {
		p := f.provider(t)

		snap := p.Capture(src, map[string]string{mctx.PropertyIdentityName: "nightly-report"})

		assert.Equal(t, mctx.KindCaptured, snap.Kind())
		assert.Same(t, appLoader, snap.ClassLoader())
		assert.Same(t, alice, snap.SecurityContext())
		assert.Equal(t, "nightly-report", snap.IdentityName())

		rec := snap.Invocation()
		require.NotNil(t, rec)
		assert.NotSame(t, original, rec)
		assert.Equal(t, domain.InvocationPropagated, rec.Type)
		assert.Equal(t, "orders-app", rec.AppName)
		assert.Equal(t, "orders-web", rec.ModuleName)
		assert.Equal(t, original.ComponentID, rec.ComponentID)
		assert.Same(t, ordersBean, rec.Instance)
		assert.Same(t, ordersNames, rec.Naming)
	})

	t.Run("disabled categories are not read", func(t *testing.T) {
		p := f.provider(t, mctx.CategoryNaming)

		snap := p.Capture(src, nil)

		assert.Nil(t, snap.ClassLoader())
		assert.Nil(t, snap.SecurityContext())
		require.NotNil(t, snap.Invocation())
	})

	t.Run("naming disabled drops bindings", func(t *testing.T) {
		p := f.provider(t, mctx.CategoryClassLoading, mctx.CategorySecurity)

		snap := p.Capture(src, nil)

		require.NotNil(t, snap.Invocation())
		assert.Nil(t, snap.Invocation().Naming)
	})

	t.Run("no invocation on stack", func(t *testing.T) {
		p := f.provider(t)
		ctx, _ := threadCtx("bare")

		snap := p.Capture(ctx, nil)

		assert.Nil(t, snap.Invocation())
		assert.Nil(t, snap.ClassLoader())
		assert.Nil(t, snap.SecurityContext())
	})

	t.Run("capture leaves thread untouched", func(t *testing.T) {
		p := f.provider(t)

		p.Capture(src, nil)

		assert.Same(t, appLoader, f.loaders.ContextClassLoader(src))
		assert.Same(t, alice, f.security.CurrentSecurityContext(src))
		assert.Same(t, original, f.invocations.CurrentInvocation(src))
		assert.Equal(t, 1, f.invocations.Depth(src))
	})

	t.Run("properties are copied", func(t *testing.T) {
		p := f.provider(t)
		props := map[string]string{"k": "v"}

		snap := p.Capture(src, props)
		props["k"] = "changed"

		assert.Equal(t, "v", snap.Properties()["k"])

		got := snap.Properties()
		got["k"] = "mutated"
		assert.Equal(t, "v", snap.Properties()["k"])
	})
}

func TestProvider_InstallRestore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	snap := p.Capture(f.submitter(t), map[string]string{mctx.PropertyIdentityName: "task-1"})

	wctx, worker := threadCtx("worker-1")
	f.loaders.SetContextClassLoader(wctx, poolLoader)

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)
	require.NotNil(t, restore)
	assert.Equal(t, mctx.KindRestorePoint, restore.Kind())

	assert.Same(t, appLoader, f.loaders.ContextClassLoader(wctx))
	assert.Same(t, alice, f.security.CurrentSecurityContext(wctx))

	current := f.invocations.CurrentInvocation(wctx)
	require.NotNil(t, current)
	assert.Same(t, snap.Invocation(), current)
	require.NotNil(t, current.ResourceTableKey)
	assert.Same(t, worker, current.ResourceTableKey.Thread())
	assert.True(t, current.ResourceTableKey.Equal(domain.NewIdentityKey(ordersBean, worker)))

	p.Restore(wctx, restore)

	assert.Same(t, poolLoader, f.loaders.ContextClassLoader(wctx))
	assert.Nil(t, f.security.CurrentSecurityContext(wctx))
	assert.Nil(t, f.invocations.CurrentInvocation(wctx))
	assert.Equal(t, 0, f.invocations.Depth(wctx))

	assert.Equal(t, 1, f.recorder.captured)
	assert.Equal(t, 1, f.recorder.installs[mctx.InstallInstalled])
	assert.Equal(t, 1, f.recorder.restored)
	assert.Equal(t, 1, f.recorder.cleanups[mctx.TxCleanupNone])
}

func TestProvider_Install_FreshKeyPerInstall(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	snap := p.Capture(f.submitter(t), nil)

	w1, t1 := threadCtx("w1")
	w2, t2 := threadCtx("w2")

	r1, err := p.Install(w1, snap)
	require.NoError(t, err)
	k1 := snap.Invocation().ResourceTableKey
	p.Restore(w1, r1)

	r2, err := p.Install(w2, snap)
	require.NoError(t, err)
	k2 := snap.Invocation().ResourceTableKey
	p.Restore(w2, r2)

	assert.NotSame(t, k1, k2)
	assert.Same(t, t1, k1.Thread())
	assert.Same(t, t2, k2.Thread())
	assert.False(t, k1.Equal(k2))
}

func TestProvider_Install_NoInvocation(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)

	sctx, _ := threadCtx("bare-submitter")
	f.security.SetSecurityContext(sctx, alice)
	snap := p.Capture(sctx, nil)

	wctx, _ := threadCtx("worker")
	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)

	assert.Equal(t, 0, f.invocations.Depth(wctx))
	assert.Same(t, alice, f.security.CurrentSecurityContext(wctx))

	p.Restore(wctx, restore)

	assert.Equal(t, 0, f.invocations.Depth(wctx))
	assert.Nil(t, f.security.CurrentSecurityContext(wctx))
}

func TestProvider_Install_StaleApplication(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		message string
	}{
		{
			name: "application disabled",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.deployment.Disable(context.Background(), "orders-app"))
			},
			message: `application "orders-app" is disabled`,
		},
		{
			name: "application undeployed",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.deployment.Sync(context.Background(), []domain.Application{{Name: "billing-app", Enabled: true}}))
			},
			message: `application "orders-app" is not deployed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.provider(t)
			snap := p.Capture(f.submitter(t), nil)

			tt.setup(t, f)

			wctx, _ := threadCtx("worker")
			f.loaders.SetContextClassLoader(wctx, poolLoader)

			restore, err := p.Install(wctx, snap)

			require.Error(t, err)
			assert.Nil(t, restore)
			assert.True(t, domain.IsIllegalState(err))
			assert.Contains(t, err.Error(), tt.message)

			assert.Same(t, poolLoader, f.loaders.ContextClassLoader(wctx))
			assert.Nil(t, f.security.CurrentSecurityContext(wctx))
			assert.Equal(t, 0, f.invocations.Depth(wctx))
			assert.Equal(t, 1, f.recorder.installs[mctx.InstallStale])
		})
	}
}

func TestProvider_Install_AsksDeploymentPerInstall(t *testing.T) {
	f := newFixture(t)
	snap := f.provider(t).Capture(f.submitter(t), nil)

	dep := mocks.NewMockDeployment(t)
	isOrders := mock.MatchedBy(func(a *domain.Application) bool { return a != nil && a.Name == "orders-app" })
	dep.EXPECT().IsAppEnabled(mock.Anything, isOrders).Return(true).Once()
	dep.EXPECT().IsAppEnabled(mock.Anything, isOrders).Return(false).Once()

	deps := f.deps()
	deps.Deployment = dep

	p, err := mctx.New(deps, mctx.AllCategories, mctx.WithLogger(discardLogger()))
	require.NoError(t, err)

	wctx, _ := threadCtx("worker")

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)
	p.Restore(wctx, restore)

	_, err = p.Install(wctx, snap)
	require.Error(t, err)
	assert.True(t, domain.IsIllegalState(err))
}

func TestProvider_Install_ReenabledApplication(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	snap := p.Capture(f.submitter(t), nil)
	ctx := context.Background()

	require.NoError(t, f.deployment.Disable(ctx, "orders-app"))

	wctx, _ := threadCtx("worker")
	_, err := p.Install(wctx, snap)
	require.Error(t, err)

	require.NoError(t, f.deployment.Enable(ctx, "orders-app"))

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)
	p.Restore(wctx, restore)
}

func TestProvider_Install_NoThread(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	snap := p.Capture(f.submitter(t), nil)

	restore, err := p.Install(context.Background(), snap)

	require.ErrorIs(t, err, mctx.ErrNoThread)
	assert.Nil(t, restore)
	assert.Equal(t, 1, f.recorder.installs[mctx.InstallNoThread])
}

func TestProvider_UnrecognizedHandles(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	snap := p.Capture(f.submitter(t), nil)

	wctx, _ := threadCtx("worker")
	f.loaders.SetContextClassLoader(wctx, poolLoader)

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)

	t.Run("install of foreign handle", func(t *testing.T) {
		rp, err := p.Install(wctx, foreignHandle{})
		require.NoError(t, err)
		assert.Nil(t, rp)
	})

	t.Run("install of nil handle", func(t *testing.T) {
		rp, err := p.Install(wctx, nil)
		require.NoError(t, err)
		assert.Nil(t, rp)
	})

	t.Run("install of restore point", func(t *testing.T) {
		rp, err := p.Install(wctx, restore)
		require.NoError(t, err)
		assert.Nil(t, rp)
	})

	t.Run("restore of captured snapshot is a no-op", func(t *testing.T) {
		p.Restore(wctx, snap)
		assert.Equal(t, 1, f.invocations.Depth(wctx))
		assert.Same(t, appLoader, f.loaders.ContextClassLoader(wctx))
	})

	t.Run("restore of foreign handle is a no-op", func(t *testing.T) {
		p.Restore(wctx, foreignHandle{})
		p.Restore(wctx, nil)
		assert.Equal(t, 1, f.invocations.Depth(wctx))
	})

	p.Restore(wctx, restore)
	assert.Same(t, poolLoader, f.loaders.ContextClassLoader(wctx))
	assert.Equal(t, 3, f.recorder.installs[mctx.InstallUnrecognized])
}

type foreignHandle struct{}

func (foreignHandle) Kind() mctx.Kind { return "foreign" }

// failingInvocations rejects every push.
type failingInvocations struct {
	*ambient.InvocationManager
}

func (failingInvocations) Push(context.Context, *domain.InvocationRecord) error {
	return errors.New("stack full")
}

func TestProvider_Install_PushFailureUndoesSwaps(t *testing.T) {
	f := newFixture(t)
	capturer := f.provider(t)
	snap := capturer.Capture(f.submitter(t), nil)

	deps := f.deps()
	deps.Invocations = failingInvocations{f.invocations}
	p, err := mctx.New(deps, mctx.AllCategories, mctx.WithLogger(discardLogger()), mctx.WithRecorder(f.recorder))
	require.NoError(t, err)

	wctx, _ := threadCtx("worker")
	f.loaders.SetContextClassLoader(wctx, poolLoader)

	restore, err := p.Install(wctx, snap)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack full")
	assert.Nil(t, restore)
	assert.Same(t, poolLoader, f.loaders.ContextClassLoader(wctx))
	assert.Nil(t, f.security.CurrentSecurityContext(wctx))
	assert.Nil(t, snap.Invocation().ResourceTableKey, "a failed push must not publish a resource key")
	assert.Equal(t, 1, f.recorder.installs[mctx.InstallFailed])
}

// statefulBean has a comparable type whose field may hold a map or slice.
type statefulBean struct {
	state any
}

func TestProvider_Install_UncomparableInstances(t *testing.T) {
	tests := []struct {
		name     string
		instance any
	}{
		{name: "struct holding a map", instance: statefulBean{state: map[string]int{"a": 1}}},
		{name: "struct holding a slice", instance: statefulBean{state: []string{"orders"}}},
		{name: "bare map", instance: map[string]int{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.provider(t)

			sctx, _ := threadCtx("submitter")
			f.security.SetSecurityContext(sctx, alice)
			require.NoError(t, f.invocations.Push(sctx, &domain.InvocationRecord{
				ComponentID: "orders-web/OrderServlet",
				Type:        domain.InvocationServlet,
				AppName:     "orders-app",
				ModuleName:  "orders-web",
				Instance:    tt.instance,
			}))
			snap := p.Capture(sctx, nil)

			wctx, thread := threadCtx("worker")
			f.loaders.SetContextClassLoader(wctx, poolLoader)

			var (
				restore mctx.Handle
				err     error
			)

			require.NotPanics(t, func() { restore, err = p.Install(wctx, snap) })
			require.NoError(t, err)

			key := snap.Invocation().ResourceTableKey
			require.NotNil(t, key)
			assert.Same(t, thread, key.Thread())
			assert.True(t, key.Equal(domain.NewIdentityKey(tt.instance, thread)))
			assert.Same(t, alice, f.security.CurrentSecurityContext(wctx))

			p.Restore(wctx, restore)

			assert.Same(t, poolLoader, f.loaders.ContextClassLoader(wctx))
			assert.Nil(t, f.security.CurrentSecurityContext(wctx))
			assert.Equal(t, 0, f.invocations.Depth(wctx))
		})
	}
}

func TestProvider_Install_ClearsInheritedTransaction(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	snap := p.Capture(f.submitter(t), nil)

	wctx, _ := threadCtx("worker")
	_, err := f.tx.Begin(wctx)
	require.NoError(t, err)

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)

	tx, err := f.tx.CurrentTransaction(wctx)
	require.NoError(t, err)
	assert.Nil(t, tx)

	p.Restore(wctx, restore)
}

func TestProvider_Restore_TransactionCleanup(t *testing.T) {
	tests := []struct {
		name       string
		task       func(t *testing.T, f *fixture, ctx context.Context) *ambient.Transaction
		wantStatus domain.TxStatus
		outcome    string
	}{
		{
			name: "active transaction is committed",
			task: func(t *testing.T, f *fixture, ctx context.Context) *ambient.Transaction {
				tx, err := f.tx.Begin(ctx)
				require.NoError(t, err)

				return tx
			},
			wantStatus: domain.TxStatusCommitted,
			outcome:    mctx.TxCleanupCommit,
		},
		{
			name: "rollback-only transaction is rolled back",
			task: func(t *testing.T, f *fixture, ctx context.Context) *ambient.Transaction {
				tx, err := f.tx.Begin(ctx)
				require.NoError(t, err)
				require.NoError(t, tx.SetRollbackOnly())

				return tx
			},
			wantStatus: domain.TxStatusRolledBack,
			outcome:    mctx.TxCleanupRollback,
		},
		{
			name: "no transaction",
			task: func(*testing.T, *fixture, context.Context) *ambient.Transaction {
				return nil
			},
			outcome: mctx.TxCleanupNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.provider(t)
			snap := p.Capture(f.submitter(t), nil)
			wctx, _ := threadCtx("worker")

			restore, err := p.Install(wctx, snap)
			require.NoError(t, err)

			tx := tt.task(t, f, wctx)

			p.Restore(wctx, restore)

			if tx != nil {
				status, err := tx.Status()
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, status)
			}

			current, err := f.tx.CurrentTransaction(wctx)
			require.NoError(t, err)
			assert.Nil(t, current)
			assert.Equal(t, 1, f.recorder.cleanups[tt.outcome])
		})
	}
}

func TestProvider_Restore_TransactionFailuresSwallowed(t *testing.T) {
	statusErr := errors.New("status unavailable")
	commitErr := errors.New("commit failed")

	tests := []struct {
		name    string
		setup   func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction)
		outcome string
	}{
		{
			name: "current transaction lookup fails",
			setup: func(tm *mocks.MockTransactionManager, _ *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(nil, errors.New("tm down"))
			},
			outcome: mctx.TxCleanupFailed,
		},
		{
			name: "status fails",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(tx, nil)
				tx.EXPECT().Status().Return(domain.TxStatusUnknown, statusErr)
			},
			outcome: mctx.TxCleanupFailed,
		},
		{
			name: "commit fails",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(tx, nil)
				tx.EXPECT().Status().Return(domain.TxStatusActive, nil)
				tm.EXPECT().Commit(mock.Anything).Return(commitErr)
			},
			outcome: mctx.TxCleanupFailed,
		},
		{
			name: "rollback fails",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(tx, nil)
				tx.EXPECT().Status().Return(domain.TxStatusMarkedRollback, nil)
				tm.EXPECT().Rollback(mock.Anything).Return(errors.New("rollback failed"))
			},
			outcome: mctx.TxCleanupFailed,
		},
		{
			name: "commit panics",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(tx, nil)
				tx.EXPECT().Status().Return(domain.TxStatusActive, nil)
				tm.EXPECT().Commit(mock.Anything).RunAndReturn(func(context.Context) error {
					panic("resource manager crashed")
				})
			},
			outcome: mctx.TxCleanupFailed,
		},
		{
			name: "prepared transaction is left alone",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(tx, nil)
				tx.EXPECT().Status().Return(domain.TxStatusPrepared, nil)
			},
			outcome: mctx.TxCleanupLeft,
		},
		{
			name: "committed transaction is left alone",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction) {
				tm.EXPECT().CurrentTransaction(mock.Anything).Return(tx, nil)
				tx.EXPECT().Status().Return(domain.TxStatusCommitted, nil)
			},
			outcome: mctx.TxCleanupLeft,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tm := mocks.NewMockTransactionManager(t)
			tx := mocks.NewMockTransaction(t)

			// Once on install, once after cleanup.
			tm.EXPECT().ClearThreadTransaction(mock.Anything).Return().Times(2)
			tt.setup(tm, tx)

			deps := f.deps()
			deps.Transactions = tm
			p, err := mctx.New(deps, mctx.AllCategories, mctx.WithLogger(discardLogger()), mctx.WithRecorder(f.recorder))
			require.NoError(t, err)

			snap := p.Capture(f.submitter(t), nil)
			wctx, _ := threadCtx("worker")

			restore, err := p.Install(wctx, snap)
			require.NoError(t, err)

			assert.NotPanics(t, func() { p.Restore(wctx, restore) })

			assert.Equal(t, 0, f.invocations.Depth(wctx))
			assert.Equal(t, 1, f.recorder.cleanups[tt.outcome])
			assert.Equal(t, 1, f.recorder.restored)
		})
	}
}

func TestProvider_Restore_ClearTransactionPanicSwallowed(t *testing.T) {
	f := newFixture(t)
	tm := mocks.NewMockTransactionManager(t)

	tm.EXPECT().ClearThreadTransaction(mock.Anything).Return().Once()
	tm.EXPECT().ClearThreadTransaction(mock.Anything).Run(func(context.Context) {
		panic("transaction registry closed")
	}).Once()
	tm.EXPECT().CurrentTransaction(mock.Anything).Return(nil, nil)

	deps := f.deps()
	deps.Transactions = tm
	p, err := mctx.New(deps, mctx.AllCategories, mctx.WithLogger(discardLogger()), mctx.WithRecorder(f.recorder))
	require.NoError(t, err)

	snap := p.Capture(f.submitter(t), nil)
	wctx, _ := threadCtx("worker")

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)

	assert.NotPanics(t, func() { p.Restore(wctx, restore) })

	assert.Nil(t, f.security.CurrentSecurityContext(wctx))
	assert.Equal(t, 0, f.invocations.Depth(wctx))
	assert.Equal(t, 1, f.recorder.cleanups[mctx.TxCleanupNone])
	assert.Equal(t, 1, f.recorder.cleanups[mctx.TxCleanupFailed])
	assert.Equal(t, 1, f.recorder.restored)
}

func TestProvider_WithoutTransactionManager(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Transactions = nil

	p, err := mctx.New(deps, mctx.AllCategories, mctx.WithLogger(discardLogger()), mctx.WithRecorder(f.recorder))
	require.NoError(t, err)

	snap := p.Capture(f.submitter(t), nil)
	wctx, _ := threadCtx("worker")

	restore, err := p.Install(wctx, snap)
	require.NoError(t, err)
	p.Restore(wctx, restore)

	assert.Empty(t, f.recorder.cleanups)
	assert.Equal(t, 1, f.recorder.restored)
}

func TestProvider_Run(t *testing.T) {
	t.Run("body sees installed context", func(t *testing.T) {
		f := newFixture(t)
		p := f.provider(t)
		snap := p.Capture(f.submitter(t), nil)
		wctx, _ := threadCtx("worker")

		err := p.Run(wctx, snap, func(ctx context.Context) error {
			assert.Same(t, alice, f.security.CurrentSecurityContext(ctx))
			assert.Equal(t, 1, f.invocations.Depth(ctx))

			return nil
		})

		require.NoError(t, err)
		assert.Nil(t, f.security.CurrentSecurityContext(wctx))
		assert.Equal(t, 0, f.invocations.Depth(wctx))
	})

	t.Run("body error is returned after restore", func(t *testing.T) {
		f := newFixture(t)
		p := f.provider(t)
		snap := p.Capture(f.submitter(t), nil)
		wctx, _ := threadCtx("worker")
		bodyErr := errors.New("report failed")

		err := p.Run(wctx, snap, func(context.Context) error { return bodyErr })

		require.ErrorIs(t, err, bodyErr)
		assert.Equal(t, 0, f.invocations.Depth(wctx))
	})

	t.Run("panic restores before propagating", func(t *testing.T) {
		f := newFixture(t)
		p := f.provider(t)
		snap := p.Capture(f.submitter(t), nil)
		wctx, _ := threadCtx("worker")
		f.loaders.SetContextClassLoader(wctx, poolLoader)

		assert.PanicsWithValue(t, "boom", func() {
			_ = p.Run(wctx, snap, func(context.Context) error { panic("boom") })
		})

		assert.Same(t, poolLoader, f.loaders.ContextClassLoader(wctx))
		assert.Equal(t, 0, f.invocations.Depth(wctx))
		assert.Equal(t, 1, f.recorder.restored)
	})

	t.Run("stale context never runs body", func(t *testing.T) {
		f := newFixture(t)
		p := f.provider(t)
		snap := p.Capture(f.submitter(t), nil)
		require.NoError(t, f.deployment.Disable(context.Background(), "orders-app"))
		wctx, _ := threadCtx("worker")

		ran := false
		err := p.Run(wctx, snap, func(context.Context) error {
			ran = true
			return nil
		})

		require.Error(t, err)
		assert.True(t, domain.IsIllegalState(err))
		assert.False(t, ran)
	})

	t.Run("unrecognized handle runs body unchanged", func(t *testing.T) {
		f := newFixture(t)
		p := f.provider(t)
		wctx, _ := threadCtx("worker")

		ran := false
		err := p.Run(wctx, foreignHandle{}, func(ctx context.Context) error {
			ran = true
			assert.Equal(t, 0, f.invocations.Depth(ctx))

			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		assert.Zero(t, f.recorder.restored)
	})
}

func TestProvider_Nested(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	outer := p.Capture(f.submitter(t), nil)

	bctx, _ := threadCtx("billing-submitter")
	bob := &domain.SecurityContext{Principal: "bob"}
	f.security.SetSecurityContext(bctx, bob)
	require.NoError(t, f.invocations.Push(bctx, &domain.InvocationRecord{ComponentID: "billing", AppName: "billing-app"}))
	inner := p.Capture(bctx, nil)

	wctx, _ := threadCtx("worker")

	r1, err := p.Install(wctx, outer)
	require.NoError(t, err)
	r2, err := p.Install(wctx, inner)
	require.NoError(t, err)

	assert.Same(t, bob, f.security.CurrentSecurityContext(wctx))
	assert.Equal(t, 2, f.invocations.Depth(wctx))

	p.Restore(wctx, r2)
	assert.Same(t, alice, f.security.CurrentSecurityContext(wctx))
	assert.Equal(t, "orders-app", f.invocations.CurrentInvocation(wctx).AppName)

	p.Restore(wctx, r1)
	assert.Nil(t, f.security.CurrentSecurityContext(wctx))
	assert.Equal(t, 0, f.invocations.Depth(wctx))
}

func TestProvider_ConcurrentWorkers(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)

	const workers = 16
	const tasksPerWorker = 50

	snaps := make([]*mctx.Snapshot, workers)
	for i := range snaps {
		sctx, _ := threadCtx(fmt.Sprintf("submitter-%d", i))
		f.security.SetSecurityContext(sctx, &domain.SecurityContext{Principal: fmt.Sprintf("user-%d", i)})
		require.NoError(t, f.invocations.Push(sctx, &domain.InvocationRecord{
			ComponentID: fmt.Sprintf("c-%d", i),
			AppName:     "orders-app",
			Instance:    i,
		}))
		snaps[i] = p.Capture(sctx, nil)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*tasksPerWorker)

	for i := range workers {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			wctx, _ := threadCtx(fmt.Sprintf("worker-%d", i))
			for range tasksPerWorker {
				want := fmt.Sprintf("user-%d", i)

				err := p.Run(wctx, snaps[i], func(ctx context.Context) error {
					if got := f.security.CurrentSecurityContext(ctx).Principal; got != want {
						return fmt.Errorf("worker %d saw principal %q", i, got)
					}

					return nil
				})
				if err != nil {
					errs <- err
				}

				if d := f.invocations.Depth(wctx); d != 0 {
					errs <- fmt.Errorf("worker %d left depth %d", i, d)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	assert.Equal(t, workers*tasksPerWorker, f.recorder.restored)
}

// TestProvider_RoundTripProperty checks that any prior thread state survives
// an install/restore cycle regardless of the categories in play.
func TestProvider_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	loaders := []*domain.ClassLoader{nil, poolLoader, appLoader}
	identities := []*domain.SecurityContext{nil, alice, {Principal: "carol"}}

	properties.Property("install then restore is the identity", prop.ForAll(
		func(mask uint8, priorLoader, priorIdentity, depth int, withInvocation bool) bool {
			f := newFixture(t)

			var categories []mctx.Category
			for i, c := range mctx.AllCategories {
				if mask&(1<<i) != 0 {
					categories = append(categories, c)
				}
			}

			p, err := mctx.New(f.deps(), categories, mctx.WithLogger(discardLogger()))
			if err != nil {
				return false
			}

			sctx, _ := threadCtx("submitter")
			f.loaders.SetContextClassLoader(sctx, appLoader)
			f.security.SetSecurityContext(sctx, alice)
			if withInvocation {
				_ = f.invocations.Push(sctx, &domain.InvocationRecord{AppName: "orders-app", Instance: ordersBean})
			}
			snap := p.Capture(sctx, nil)

			wctx, _ := threadCtx("worker")
			f.loaders.SetContextClassLoader(wctx, loaders[priorLoader])
			f.security.SetSecurityContext(wctx, identities[priorIdentity])
			for range depth {
				_ = f.invocations.Push(wctx, &domain.InvocationRecord{AppName: "billing-app"})
			}
			top := f.invocations.CurrentInvocation(wctx)

			restore, err := p.Install(wctx, snap)
			if err != nil {
				return false
			}
			p.Restore(wctx, restore)

			return f.loaders.ContextClassLoader(wctx) == loaders[priorLoader] &&
				f.security.CurrentSecurityContext(wctx) == identities[priorIdentity] &&
				f.invocations.Depth(wctx) == depth &&
				f.invocations.CurrentInvocation(wctx) == top
		},
		gen.UInt8Range(0, 15),
		gen.IntRange(0, len(loaders)-1),
		gen.IntRange(0, len(identities)-1),
		gen.IntRange(0, 3),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
