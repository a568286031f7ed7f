package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// Service decides whether applications are enabled. A stored override wins
// over the configured state. Store failures count as disabled: running a
// task for an application of unknown state is worse than refusing it.
type Service struct {
	registry *Registry
	store    StatusStore
	logger   *slog.Logger
}

var _ ports.Deployment = (*Service)(nil)

// NewService creates a deployment service.
func NewService(registry *Registry, store StatusStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		registry: registry,
		store:    store,
		logger:   logger.With(slog.String("component", "deployment")),
	}
}

// Registry returns the application registry backing the service.
func (s *Service) Registry() *Registry {
	return s.registry
}

// IsAppEnabled implements ports.Deployment.
func (s *Service) IsAppEnabled(ctx context.Context, app *domain.Application) bool {
	if app == nil {
		return false
	}

	enabled, known, err := s.store.Enabled(ctx, app.Name)
	if err != nil {
		logging.FromContextOr(ctx, s.logger).ErrorContext(ctx, "status store lookup failed, treating application as disabled",
			slog.String("app", app.Name),
			slog.Any("error", err),
		)

		return false
	}

	if !known {
		return app.Enabled
	}

	return enabled
}

// Enable marks a registered application enabled.
func (s *Service) Enable(ctx context.Context, name string) error {
	return s.set(ctx, name, true)
}

// Disable marks a registered application disabled. Tasks already submitted
// on its behalf will fail to start.
func (s *Service) Disable(ctx context.Context, name string) error {
	return s.set(ctx, name, false)
}

func (s *Service) set(ctx context.Context, name string, enabled bool) error {
	if _, ok := s.registry.LookupApplication(ctx, name); !ok {
		return domain.NewNotFoundError("application", name)
	}

	if err := s.store.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}

	logging.FromContextOr(ctx, s.logger).InfoContext(ctx, "application state changed",
		slog.String("app", name),
		slog.Bool("enabled", enabled),
	)

	return nil
}

// Applications returns every registered application with its effective
// enabled state.
func (s *Service) Applications(ctx context.Context) []domain.Application {
	apps := s.registry.List()
	out := make([]domain.Application, 0, len(apps))

	for _, app := range apps {
		a := *app
		a.Enabled = s.IsAppEnabled(ctx, app)
		out = append(out, a)
	}

	return out
}

// Sync replaces the registered applications and writes their configured
// state to the store. Applications no longer present are forgotten. A
// failed store write is logged and the remaining writes still run, so one
// unreachable key cannot leave the rest of the store behind the registry.
// The returned error joins every failure.
func (s *Service) Sync(ctx context.Context, apps []domain.Application) error {
	removed := s.registry.Replace(apps)

	var errs []error

	for _, name := range removed {
		if err := s.store.Forget(ctx, name); err != nil {
			s.logger.ErrorContext(ctx, "failed to forget application state", slog.String("app", name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("forgetting %q: %w", name, err))
		}
	}

	for _, app := range apps {
		if err := s.store.SetEnabled(ctx, app.Name, app.Enabled); err != nil {
			s.logger.ErrorContext(ctx, "failed to write application state", slog.String("app", app.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("writing %q: %w", app.Name, err))
		}
	}

	s.logger.InfoContext(ctx, "applications synchronised",
		slog.Int("count", len(apps)),
		slog.Any("removed", removed),
		slog.Int("failed", len(errs)),
	)

	return errors.Join(errs...)
}
