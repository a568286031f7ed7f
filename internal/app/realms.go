package app

import (
	"context"
	"log/slog"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
)

// DefaultTarget is the target assumed when none is given.
const DefaultTarget = "server"

// Topology is the configured set of server configurations and the servers
// and clusters that reference them.
type Topology struct {
	DefaultConfig string
	Configs       []domain.ServerConfig
	Servers       []domain.ServerRef
	Clusters      []domain.ServerRef
}

// TopologyFromConfig converts the configured topology to domain values.
func TopologyFromConfig(cfg config.TopologyConfig) Topology {
	t := Topology{
		DefaultConfig: cfg.DefaultConfig,
		Configs:       make([]domain.ServerConfig, 0, len(cfg.Configs)),
		Servers:       refsFromConfig(cfg.Servers),
		Clusters:      refsFromConfig(cfg.Clusters),
	}

	for _, c := range cfg.Configs {
		realms := make([]domain.AuthRealm, 0, len(c.AuthRealms))
		for _, r := range c.AuthRealms {
			realms = append(realms, domain.AuthRealm{Name: r.Name, ClassName: r.ClassName})
		}

		t.Configs = append(t.Configs, domain.ServerConfig{Name: c.Name, AuthRealms: realms})
	}

	return t
}

func refsFromConfig(refs []config.TargetRef) []domain.ServerRef {
	out := make([]domain.ServerRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, domain.ServerRef{Name: r.Name, ConfigRef: r.ConfigRef})
	}

	return out
}

// RealmReport lists the authentication realms of the configuration a target
// resolved to.
type RealmReport struct {
	Target string
	Config string
	Realms []domain.AuthRealm
}

// Names returns the realm names in configured order.
func (r *RealmReport) Names() []string {
	names := make([]string, len(r.Realms))
	for i, realm := range r.Realms {
		names[i] = realm.Name
	}

	return names
}

// RealmService reports configured authentication realms.
type RealmService struct {
	topology Topology
	logger   *slog.Logger
}

// NewRealmService creates a realm service over topology.
func NewRealmService(topology Topology, logger *slog.Logger) *RealmService {
	if logger == nil {
		logger = slog.Default()
	}

	return &RealmService{topology: topology, logger: logger}
}

// ListAuthRealms resolves target to a configuration and returns its realms.
//
// Resolution starts from the default configuration. A configuration named
// target replaces it, then a server named target replaces it with the
// server's configuration, then a cluster named target does the same. The
// last match wins.
func (s *RealmService) ListAuthRealms(ctx context.Context, target string) (*RealmReport, error) {
	if target == "" {
		target = DefaultTarget
	}

	configName := s.topology.DefaultConfig

	if _, ok := s.config(target); ok {
		configName = target
	}

	if ref, ok := findRef(s.topology.Servers, target); ok {
		configName = ref.ConfigRef
	}

	if ref, ok := findRef(s.topology.Clusters, target); ok {
		configName = ref.ConfigRef
	}

	cfg, ok := s.config(configName)
	if !ok {
		logging.FromContextOr(ctx, s.logger).WarnContext(ctx, "target resolved to unknown configuration",
			slog.String("target", target),
			slog.String("config", configName),
		)

		return nil, domain.NewNotFoundError("server config for target "+target, configName)
	}

	realms := make([]domain.AuthRealm, len(cfg.AuthRealms))
	copy(realms, cfg.AuthRealms)

	return &RealmReport{Target: target, Config: cfg.Name, Realms: realms}, nil
}

func (s *RealmService) config(name string) (*domain.ServerConfig, bool) {
	if name == "" {
		return nil, false
	}

	for i := range s.topology.Configs {
		if s.topology.Configs[i].Name == name {
			return &s.topology.Configs[i], true
		}
	}

	return nil, false
}

func findRef(refs []domain.ServerRef, name string) (domain.ServerRef, bool) {
	for _, ref := range refs {
		if ref.Name == name {
			return ref, true
		}
	}

	return domain.ServerRef{}, false
}
