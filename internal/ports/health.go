package ports

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateChecker is returned when a checker name is registered twice.
	ErrDuplicateChecker = errors.New("duplicate health checker")

	// ErrDegraded marks a check failure the runtime can keep serving through,
	// such as a saturated executor queue. Wrap it to report degraded rather
	// than unhealthy.
	ErrDegraded = errors.New("degraded")
)

// HealthChecker is implemented by components that can report their health,
// such as the shared deployment-status store or an executor.
type HealthChecker interface {
	// Name identifies the check in health responses.
	Name() string

	// Check returns nil when the component is healthy. It must honour ctx.
	Check(ctx context.Context) error
}

// HealthRegistry aggregates health checks from multiple components.
type HealthRegistry interface {
	Register(checker HealthChecker) error
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is the state of one check or of the whole runtime.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Serving reports whether the runtime should keep receiving work.
func (s HealthStatus) Serving() bool {
	return s.severity() < HealthStatusUnhealthy.severity()
}

// HealthResult is the outcome of one CheckAll pass. Status is the worst
// status among Checks.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

func checkResultOf(err error, took time.Duration) *CheckResult {
	res := &CheckResult{Status: HealthStatusHealthy, Duration: took}

	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded):
		res.Status, res.Message = HealthStatusDegraded, err.Error()
	default:
		res.Status, res.Message = HealthStatusUnhealthy, err.Error()
	}

	return res
}

// DefaultHealthRegistry runs its checks concurrently, each under its own
// timeout. It is safe for concurrent use.
type DefaultHealthRegistry struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry. A positive timeout bounds each
// individual check.
func NewHealthRegistry(timeout time.Duration) *DefaultHealthRegistry {
	return &DefaultHealthRegistry{
		timeout:  timeout,
		checkers: make(map[string]HealthChecker),
	}
}

// Register adds checker under its name.
func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	name := checker.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.checkers[name]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}

	r.checkers[name] = checker

	return nil
}

// Names lists the registered checks in sorted order.
func (r *DefaultHealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// CheckAll runs every registered check and folds them into one result.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	results := make(map[string]*CheckResult, len(checkers))

	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	for name, checker := range checkers {
		g.Go(func() error {
			res := r.run(ctx, checker)

			mu.Lock()
			results[name] = res
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	overall := HealthStatusHealthy
	for _, res := range results {
		if res.Status.severity() > overall.severity() {
			overall = res.Status
		}
	}

	return &HealthResult{Status: overall, Checks: results, Timestamp: time.Now()}
}

func (r *DefaultHealthRegistry) run(ctx context.Context, checker HealthChecker) *CheckResult {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)

		defer cancel()
	}

	start := time.Now()
	err := checker.Check(ctx)

	return checkResultOf(err, time.Since(start))
}
