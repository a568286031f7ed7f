package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	appctx "github.com/jsamuelsen/managed-concurrency/internal/app/context"
	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

const tracerName = "github.com/jsamuelsen/managed-concurrency/internal/app"

// Task outcomes reported to a TaskRecorder.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
	OutcomePanicked  = "panicked"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

var (
	// ErrExecutorShutdown is returned for submissions after Shutdown.
	ErrExecutorShutdown = errors.New("executor is shut down")

	// ErrQueueFull is returned when the task queue has no free slot.
	ErrQueueFull = errors.New("task queue is full")

	// ErrTaskPanicked wraps the value a task body panicked with.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrSetupPanicked wraps the value a context collaborator panicked with
	// while a task's context was being installed.
	ErrSetupPanicked = errors.New("context setup panicked")
)

// Task is a unit of work run on a managed thread. ctx carries the thread
// with the submitter's context installed.
type Task func(ctx context.Context) (any, error)

// TaskRecorder observes executor activity. Implementations must be safe for
// concurrent use.
type TaskRecorder interface {
	TaskFinished(executor, outcome string, d time.Duration)
	QueueDepth(executor string, n int)
	WorkerBusy(executor string, delta int)
}

type nopTaskRecorder struct{}

func (nopTaskRecorder) TaskFinished(string, string, time.Duration) {}
func (nopTaskRecorder) QueueDepth(string, int)                     {}
func (nopTaskRecorder) WorkerBusy(string, int)                     {}

// ExecutorConfig sizes a ManagedExecutor.
type ExecutorConfig struct {
	Name      string
	Workers   int
	QueueSize int

	// SubmitRate is submissions per second. Zero disables throttling.
	SubmitRate  float64
	SubmitBurst int

	Logger   *slog.Logger
	Recorder TaskRecorder
}

// ExecutorStats is a point-in-time view of an executor.
type ExecutorStats struct {
	Name          string `json:"name"`
	Workers       int    `json:"workers"`
	BusyWorkers   int64  `json:"busy_workers"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Completed     uint64 `json:"completed"`
	ShuttingDown  bool   `json:"shutting_down"`
}

// ManagedExecutor runs tasks on a fixed pool of managed threads. Each task
// runs under the ambient context captured when it was submitted.
type ManagedExecutor struct {
	name     string
	workers  int
	provider *appctx.Provider
	limiter  *rate.Limiter
	logger   *slog.Logger
	recorder TaskRecorder
	tracer   trace.Tracer

	mu     sync.RWMutex
	closed bool
	queue  chan *job

	group     errgroup.Group
	baseCtx   context.Context
	cancel    context.CancelFunc
	busy      atomic.Int64
	completed atomic.Uint64
}

type job struct {
	id        string
	task      Task
	snapshot  *appctx.Snapshot
	future    *Future
	logger    *slog.Logger
	link      trace.Link
	submitted time.Time
}

// NewManagedExecutor starts cfg.Workers workers. Call Shutdown to stop them.
func NewManagedExecutor(cfg ExecutorConfig, provider *appctx.Provider) (*ManagedExecutor, error) {
	if provider == nil {
		return nil, domain.NewValidationError("provider", "context provider is required")
	}

	if cfg.Workers < 1 {
		return nil, domain.NewValidationErrorWithValue("workers", "must be at least 1", cfg.Workers)
	}

	if cfg.QueueSize < 1 {
		return nil, domain.NewValidationErrorWithValue("queue_size", "must be at least 1", cfg.QueueSize)
	}

	if cfg.Name == "" {
		cfg.Name = "default"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopTaskRecorder{}
	}

	e := &ManagedExecutor{
		name:     cfg.Name,
		workers:  cfg.Workers,
		provider: provider,
		logger:   logger.With(slog.String("component", "executor"), slog.String("executor", cfg.Name)),
		recorder: recorder,
		tracer:   otel.Tracer(tracerName),
		queue:    make(chan *job, cfg.QueueSize),
	}

	if cfg.SubmitRate > 0 {
		burst := max(cfg.SubmitBurst, 1)
		e.limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}

	e.baseCtx, e.cancel = context.WithCancel(context.Background())

	for i := range cfg.Workers {
		name := fmt.Sprintf("%s-worker-%d", cfg.Name, i)
		e.group.Go(func() error {
			e.work(name)
			return nil
		})
	}

	e.logger.Info("executor started",
		slog.Int("workers", cfg.Workers),
		slog.Int("queue_size", cfg.QueueSize),
		slog.Float64("submit_rate", cfg.SubmitRate),
	)

	return e, nil
}

// Name returns the executor name.
func (e *ManagedExecutor) Name() string {
	return e.name
}

// SubmitOption adjusts a single submission.
type SubmitOption func(props map[string]string)

// WithIdentityName names the task in logs and spans.
func WithIdentityName(name string) SubmitOption {
	return WithProperty(appctx.PropertyIdentityName, name)
}

// WithProperty attaches an execution property to the task.
func WithProperty(key, value string) SubmitOption {
	return func(props map[string]string) {
		props[key] = value
	}
}

// Submit captures the caller's ambient context and queues task. The
// returned future completes when the task has run or failed to start.
//
// Submit fails with a *TaskError in the submit phase when the executor is
// shut down, the queue is full, or ctx ends while waiting for the rate
// limiter.
func (e *ManagedExecutor) Submit(ctx context.Context, task Task, opts ...SubmitOption) (*Future, error) {
	if task == nil {
		return nil, domain.NewValidationError("task", "task is required")
	}

	id := uuid.NewString()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, e.reject(ctx, id, err)
		}
	}

	props := make(map[string]string, len(opts))
	for _, opt := range opts {
		opt(props)
	}

	j := &job{
		id:        id,
		task:      task,
		future:    newFuture(id),
		logger:    logging.FromContextOr(ctx, e.logger),
		link:      trace.LinkFromContext(ctx),
		submitted: time.Now(),
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, e.reject(ctx, id, ErrExecutorShutdown)
	}

	j.snapshot = e.provider.Capture(ctx, props)

	select {
	case e.queue <- j:
	default:
		return nil, e.reject(ctx, id, ErrQueueFull)
	}

	e.recorder.QueueDepth(e.name, len(e.queue))
	e.logger.DebugContext(ctx, "task submitted",
		slog.String("task_id", id),
		slog.String(appctx.PropertyIdentityName, j.snapshot.IdentityName()),
	)

	return j.future, nil
}

func (e *ManagedExecutor) reject(ctx context.Context, id string, cause error) error {
	e.recorder.TaskFinished(e.name, OutcomeRejected, 0)
	e.logger.WarnContext(ctx, "task rejected", slog.String("task_id", id), slog.Any("error", cause))

	return &TaskError{Phase: PhaseSubmit, TaskID: id, Cause: cause}
}

// work runs queued jobs on a thread named name. A thread whose context could
// not be installed or restored cleanly is discarded for a fresh one, so no
// task inherits another's leftovers.
func (e *ManagedExecutor) work(name string) {
	thread := domain.NewThread(name)

	for j := range e.queue {
		e.recorder.QueueDepth(e.name, len(e.queue))

		if !e.execute(thread, j) {
			e.logger.Warn("replacing worker thread after failed context cleanup", slog.String("thread", thread.String()))
			thread = domain.NewThread(name)
		}
	}
}

// execute runs j on thread and reports whether the thread is still clean.
func (e *ManagedExecutor) execute(thread *domain.Thread, j *job) bool {
	logger := j.logger.With(
		slog.String("executor", e.name),
		slog.String("thread", thread.String()),
	)

	ctx := ports.WithThread(e.baseCtx, thread)
	ctx = logging.WithContext(ctx, logger)
	ctx = logging.WithTaskID(ctx, j.id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !j.future.start(cancel) {
		e.finish(ctx, j, OutcomeCancelled, nil, context.Canceled)
		return true
	}

	spanOpts := []trace.SpanStartOption{
		trace.WithAttributes(
			attribute.String("task.id", j.id),
			attribute.String("executor.name", e.name),
			attribute.String("task.identity_name", j.snapshot.IdentityName()),
			attribute.String("thread.name", thread.Name()),
		),
	}
	if j.link.SpanContext.IsValid() {
		spanOpts = append(spanOpts, trace.WithLinks(j.link))
	}

	ctx, span := e.tracer.Start(ctx, "executor.task", spanOpts...)
	defer span.End()

	if inv := j.snapshot.Invocation(); inv != nil {
		span.SetAttributes(attribute.String("app.name", inv.AppName))
	}

	e.busy.Add(1)
	e.recorder.WorkerBusy(e.name, 1)

	defer func() {
		e.busy.Add(-1)
		e.recorder.WorkerBusy(e.name, -1)
	}()

	restorePoint, clean, err := e.install(ctx, j)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context setup failed")
		e.finish(ctx, j, OutcomeAborted, nil, &TaskError{Phase: PhaseSetup, TaskID: j.id, Cause: err})

		return clean
	}

	value, panicked, err := e.runBody(ctx, j)

	if restorePoint != nil {
		clean = e.restore(ctx, restorePoint)
	}

	outcome := OutcomeSucceeded

	switch {
	case panicked:
		outcome = OutcomePanicked
	case err != nil:
		outcome = OutcomeFailed
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}

	e.finish(ctx, j, outcome, value, err)

	return clean
}

// install runs Provider.Install. A collaborator panic becomes a setup error
// and marks the thread unclean, since some slots may already be swapped.
func (e *ManagedExecutor) install(ctx context.Context, j *job) (restorePoint appctx.Handle, clean bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContextOr(ctx, e.logger).ErrorContext(ctx, "context install panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			restorePoint, clean, err = nil, false, fmt.Errorf("%w: %v", ErrSetupPanicked, r)
		}
	}()

	restorePoint, err = e.provider.Install(ctx, j.snapshot)

	return restorePoint, true, err
}

// restore runs Provider.Restore and reports false if a collaborator
// panicked. The task's outcome stands either way.
func (e *ManagedExecutor) restore(ctx context.Context, restorePoint appctx.Handle) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContextOr(ctx, e.logger).ErrorContext(ctx, "context restore panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			clean = false
		}
	}()

	e.provider.Restore(ctx, restorePoint)

	return true
}

func (e *ManagedExecutor) runBody(ctx context.Context, j *job) (value any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContextOr(ctx, e.logger).ErrorContext(ctx, "task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			value = nil
			err = &TaskError{Phase: PhaseRun, TaskID: j.id, Cause: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			panicked = true
		}
	}()

	value, err = j.task(ctx)
	if err != nil {
		err = &TaskError{Phase: PhaseRun, TaskID: j.id, Cause: err}
	}

	return value, false, err
}

func (e *ManagedExecutor) finish(ctx context.Context, j *job, outcome string, value any, err error) {
	elapsed := time.Since(j.submitted)

	e.completed.Add(1)
	e.recorder.TaskFinished(e.name, outcome, elapsed)
	j.future.complete(value, err)

	log := logging.FromContextOr(ctx, e.logger)

	switch outcome {
	case OutcomeSucceeded:
		log.DebugContext(ctx, "task completed", slog.Duration("duration", elapsed))
	case OutcomeAborted:
		log.WarnContext(ctx, "task aborted before start", slog.Any("error", err))
	default:
		log.InfoContext(ctx, "task finished",
			slog.String("outcome", outcome),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
	}
}

// Stats returns the executor's current load.
func (e *ManagedExecutor) Stats() ExecutorStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return ExecutorStats{
		Name:          e.name,
		Workers:       e.workers,
		BusyWorkers:   e.busy.Load(),
		QueueDepth:    len(e.queue),
		QueueCapacity: cap(e.queue),
		Completed:     e.completed.Load(),
		ShuttingDown:  e.closed,
	}
}

// HealthChecker reports the executor unhealthy while it is shutting down and
// degraded while its queue is full.
func (e *ManagedExecutor) HealthChecker() ports.HealthChecker {
	return executorHealth{e: e}
}

type executorHealth struct {
	e *ManagedExecutor
}

func (h executorHealth) Name() string {
	return "executor:" + h.e.name
}

func (h executorHealth) Check(context.Context) error {
	s := h.e.Stats()

	switch {
	case s.ShuttingDown:
		return ErrExecutorShutdown
	case s.QueueDepth >= s.QueueCapacity:
		return fmt.Errorf("%w: %w", ports.ErrDegraded, ErrQueueFull)
	default:
		return nil
	}
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. When ctx ends first, running tasks see their context cancelled
// and Shutdown returns ctx's error without waiting further.
func (e *ManagedExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})

	go func() {
		_ = e.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		e.logger.InfoContext(ctx, "executor stopped", slog.Uint64("completed", e.completed.Load()))

		return nil
	case <-ctx.Done():
		e.cancel()
		e.logger.WarnContext(ctx, "executor shutdown timed out; cancelling running tasks",
			slog.Int64("busy_workers", e.busy.Load()),
			slog.Int("queued", len(e.queue)),
		)

		return fmt.Errorf("shutting down executor %s: %w", e.name, ctx.Err())
	}
}
