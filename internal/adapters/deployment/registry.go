package deployment

import (
	"context"
	"slices"
	"sync"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// Registry holds the configured applications. Applications handed out are
// shared and must be treated as read-only; Replace swaps in new values
// rather than mutating old ones.
type Registry struct {
	mu    sync.RWMutex
	apps  map[string]*domain.Application
	order []string
}

var _ ports.Applications = (*Registry)(nil)

// NewRegistry creates a registry holding apps.
func NewRegistry(apps []domain.Application) *Registry {
	r := &Registry{}
	r.Replace(apps)

	return r
}

// LookupApplication returns the application called name.
func (r *Registry) LookupApplication(_ context.Context, name string) (*domain.Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[name]

	return app, ok
}

// List returns the applications in configured order.
func (r *Registry) List() []*domain.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Application, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.apps[name])
	}

	return out
}

// Replace swaps the whole application set and returns the names that were
// dropped.
func (r *Registry) Replace(apps []domain.Application) []string {
	next := make(map[string]*domain.Application, len(apps))
	order := make([]string, 0, len(apps))

	for _, app := range apps {
		if _, dup := next[app.Name]; dup {
			continue
		}

		a := app
		a.Modules = slices.Clone(app.Modules)
		next[a.Name] = &a
		order = append(order, a.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string

	for _, name := range r.order {
		if _, ok := next[name]; !ok {
			removed = append(removed, name)
		}
	}

	r.apps = next
	r.order = order

	return removed
}

// ApplicationsFromConfig converts configured applications to domain values.
func ApplicationsFromConfig(cfgs []config.ApplicationConfig) []domain.Application {
	apps := make([]domain.Application, 0, len(cfgs))
	for _, c := range cfgs {
		apps = append(apps, domain.Application{
			Name:    c.Name,
			Modules: slices.Clone(c.Modules),
			Enabled: c.Enabled,
		})
	}

	return apps
}
