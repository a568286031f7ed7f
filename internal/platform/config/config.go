// Package config loads runtime configuration with koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	DefaultServerPort     = 8080
	DefaultMaxRequestSize = 1 << 20

	DefaultExecutorWorkers   = 8
	DefaultExecutorQueueSize = 256

	DefaultRedisKeyPrefix = "mc:"

	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28
)

// Config is the root configuration structure.
type Config struct {
	App          AppConfig           `koanf:"app"          validate:"required"`
	Server       ServerConfig        `koanf:"server"       validate:"required"`
	Log          LogConfig           `koanf:"log"          validate:"required"`
	Telemetry    TelemetryConfig     `koanf:"telemetry"`
	Auth         AuthConfig          `koanf:"auth"`
	Propagation  PropagationConfig   `koanf:"propagation"`
	Executor     ExecutorConfig      `koanf:"executor"     validate:"required"`
	Deployment   DeploymentConfig    `koanf:"deployment"   validate:"required"`
	Applications []ApplicationConfig `koanf:"applications" validate:"unique=Name,dive"`
	Topology     TopologyConfig      `koanf:"topology"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains admin HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=100ms"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
	Insecure     bool    `koanf:"insecure"`
}

// AuthConfig names the gateway headers that carry the caller identity. The
// gateway authenticates; this service only reads the forwarded claims.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SubjectHeader string `koanf:"subject_header" validate:"required_if=Enabled true"`
	RolesHeader   string `koanf:"roles_header"   validate:"required_if=Enabled true"`
	AdminRole     string `koanf:"admin_role"     validate:"required_if=Enabled true"`
}

// PropagationConfig selects the context categories the provider manages.
type PropagationConfig struct {
	Contexts []string `koanf:"contexts" validate:"dive,oneof=classloading security naming workarea"`
}

// ExecutorConfig sizes the managed executor.
type ExecutorConfig struct {
	Name      string `koanf:"name"       validate:"required"`
	Workers   int    `koanf:"workers"    validate:"required,min=1,max=1024"`
	QueueSize int    `koanf:"queue_size" validate:"required,min=1"`

	// SubmitRate is submissions per second; 0 disables throttling.
	SubmitRate      float64       `koanf:"submit_rate"      validate:"min=0"`
	SubmitBurst     int           `koanf:"submit_burst"     validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
}

// DeploymentConfig selects where application enablement is kept.
type DeploymentConfig struct {
	Store string      `koanf:"store" validate:"required,oneof=memory redis"`
	Redis RedisConfig `koanf:"redis"`

	// WatchFile, when set, is a YAML file of applications reloaded on change.
	WatchFile string `koanf:"watch_file"`
}

// RedisConfig contains the shared status store connection settings.
type RedisConfig struct {
	Addr        string        `koanf:"addr"         validate:"omitempty,hostname_port"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"           validate:"min=0,max=15"`
	KeyPrefix   string        `koanf:"key_prefix"`
	DialTimeout time.Duration `koanf:"dial_timeout" validate:"omitempty,min=100ms"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig guards the shared status store. MaxFailures consecutive
// errors open the breaker for OpenTimeout.
type BreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"min=0"`
	OpenTimeout   time.Duration `koanf:"open_timeout"    validate:"omitempty,min=100ms"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"min=0"`
}

// ApplicationConfig declares a deployed application.
type ApplicationConfig struct {
	Name    string   `koanf:"name"    yaml:"name"    validate:"required"`
	Modules []string `koanf:"modules" yaml:"modules"`
	Enabled bool     `koanf:"enabled" yaml:"enabled"`
}

// TopologyConfig describes named server configurations and the servers and
// clusters that reference them.
type TopologyConfig struct {
	DefaultConfig string                `koanf:"default_config"`
	Configs       []ServerConfigSection `koanf:"configs"  validate:"unique=Name,dive"`
	Servers       []TargetRef           `koanf:"servers"  validate:"dive"`
	Clusters      []TargetRef           `koanf:"clusters" validate:"dive"`
}

// ServerConfigSection is a named configuration with its security service.
type ServerConfigSection struct {
	Name       string            `koanf:"name"        validate:"required"`
	AuthRealms []AuthRealmConfig `koanf:"auth_realms" validate:"dive"`
}

// AuthRealmConfig is a configured authentication realm.
type AuthRealmConfig struct {
	Name      string `koanf:"name"      validate:"required"`
	ClassName string `koanf:"classname"`
}

// TargetRef is a server or cluster and the configuration it uses.
type TargetRef struct {
	Name      string `koanf:"name"       validate:"required"`
	ConfigRef string `koanf:"config_ref" validate:"required"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":        "managed-concurrency",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "15s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/managed-concurrency.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "managed-concurrency",
		"telemetry.sampling_rate": 1.0,
		"telemetry.insecure":      true,

		"auth.enabled":        false,
		"auth.subject_header": "X-User-ID",
		"auth.roles_header":   "X-User-Roles",
		"auth.admin_role":     "admin",

		"propagation.contexts": []string{"classloading", "security", "naming"},

		"executor.name":             "default",
		"executor.workers":          DefaultExecutorWorkers,
		"executor.queue_size":       DefaultExecutorQueueSize,
		"executor.submit_rate":      0.0,
		"executor.submit_burst":     0,
		"executor.shutdown_timeout": "30s",

		"deployment.store":              "memory",
		"deployment.redis.addr":         "localhost:6379",
		"deployment.redis.db":           0,
		"deployment.redis.key_prefix":   DefaultRedisKeyPrefix,
		"deployment.redis.dial_timeout": "2s",
		"deployment.watch_file":         "",

		"deployment.redis.breaker.max_failures":    5,
		"deployment.redis.breaker.open_timeout":    "10s",
		"deployment.redis.breaker.half_open_limit": 1,
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix)
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := loadFileIfExists(k, "configs/base.yaml"); err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		if err := loadFileIfExists(k, fmt.Sprintf("configs/%s.yaml", profile)); err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	if err := k.Load(env.Provider("APP_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKey maps APP_ variables onto config keys. A double underscore separates
// sections when a key itself contains underscores
// (APP_EXECUTOR__QUEUE_SIZE -> executor.queue_size); otherwise every
// underscore is a separator (APP_SERVER_PORT -> server.port).
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "APP_"))

	if strings.Contains(s, "__") {
		return strings.ReplaceAll(s, "__", ".")
	}

	return strings.ReplaceAll(s, "_", ".")
}

// loadFileIfExists loads a YAML file, treating a missing file as empty.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// LoadApplicationsFile reads a YAML document with a top-level applications
// list. It backs hot reload of the deployed application set.
func LoadApplicationsFile(path string) ([]ApplicationConfig, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading applications file: %w", err)
	}

	// A file caught mid-write reads as empty; it must not wipe the set.
	if !k.Exists("applications") {
		return nil, errors.New("applications file: missing applications list")
	}

	var apps []ApplicationConfig
	if err := k.Unmarshal("applications", &apps); err != nil {
		return nil, fmt.Errorf("unmarshalling applications: %w", err)
	}

	seen := make(map[string]bool, len(apps))

	for i := range apps {
		if err := validateSection(&apps[i]); err != nil {
			return nil, err
		}

		if seen[apps[i].Name] {
			return nil, fmt.Errorf("applications file: duplicate application %q", apps[i].Name)
		}

		seen[apps[i].Name] = true
	}

	return apps, nil
}
