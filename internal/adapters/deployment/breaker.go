package deployment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
)

// BreakerState is the state of a BreakerStore.
type BreakerState int

const (
	// BreakerClosed passes every call to the store.
	BreakerClosed BreakerState = iota

	// BreakerOpen fails every call without touching the store.
	BreakerOpen

	// BreakerHalfOpen lets a limited number of calls probe the store.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned while the breaker refuses calls.
var ErrBreakerOpen = domain.NewUnavailableError("deployment-store", "circuit breaker open")

// BreakerStore guards a StatusStore that lives on the network. Every task
// start reads enablement, so an unreachable store would otherwise cost each
// task a full dial timeout before failing safe.
//
// Transitions:
//   - closed to open after MaxFailures consecutive failures
//   - open to half-open once OpenTimeout has passed
//   - half-open to closed after HalfOpenLimit consecutive successes
//   - half-open to open on any failure
type BreakerStore struct {
	store  StatusStore
	cfg    config.BreakerConfig
	logger *slog.Logger

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time

	now func() time.Time
}

var _ StatusStore = (*BreakerStore)(nil)

// NewBreakerStore wraps store. Zero config fields take the defaults 5
// failures, 10s open timeout and 1 half-open probe.
func NewBreakerStore(store StatusStore, cfg config.BreakerConfig, logger *slog.Logger) *BreakerStore {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}

	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}

	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &BreakerStore{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "deployment-breaker")),
		now:    time.Now,
	}
}

// State returns the current breaker state.
func (b *BreakerStore) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Enabled implements StatusStore.
func (b *BreakerStore) Enabled(ctx context.Context, name string) (enabled, known bool, err error) {
	err = b.call(ctx, func() error {
		var inner error
		enabled, known, inner = b.store.Enabled(ctx, name)

		return inner
	})

	return enabled, known, err
}

// SetEnabled implements StatusStore.
func (b *BreakerStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	return b.call(ctx, func() error { return b.store.SetEnabled(ctx, name, enabled) })
}

// Forget implements StatusStore.
func (b *BreakerStore) Forget(ctx context.Context, name string) error {
	return b.call(ctx, func() error { return b.store.Forget(ctx, name) })
}

func (b *BreakerStore) call(ctx context.Context, fn func() error) error {
	if !b.allow(ctx) {
		return ErrBreakerOpen
	}

	err := fn()

	// Only an unreachable store trips the breaker; a malformed value is the
	// caller's problem.
	b.record(ctx, err == nil || !domain.IsUnavailable(err))

	return err
}

func (b *BreakerStore) allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}

		b.transition(ctx, BreakerHalfOpen)
		b.inFlight = 1

		return true

	case BreakerHalfOpen:
		if b.inFlight >= b.cfg.HalfOpenLimit {
			return false
		}

		b.inFlight++

		return true

	default:
		return false
	}
}

func (b *BreakerStore) record(ctx context.Context, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		switch b.state {
		case BreakerClosed:
			b.failures = 0
		case BreakerHalfOpen:
			b.inFlight--
			b.successes++

			if b.successes >= b.cfg.HalfOpenLimit {
				b.transition(ctx, BreakerClosed)
			}
		}

		return
	}

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.open(ctx)
		}
	case BreakerHalfOpen:
		b.inFlight--
		b.open(ctx)
	}
}

// open must be called with mu held.
func (b *BreakerStore) open(ctx context.Context) {
	b.openedAt = b.now()
	b.transition(ctx, BreakerOpen)
}

// transition must be called with mu held.
func (b *BreakerStore) transition(ctx context.Context, to BreakerState) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0

	if to != BreakerHalfOpen {
		b.inFlight = 0
	}

	b.logger.WarnContext(ctx, "status store breaker changed state",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
