// Package main is the entry point for the managed-concurrency runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/ambient"
	"github.com/jsamuelsen/managed-concurrency/internal/adapters/deployment"
	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http"
	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/handlers"
	"github.com/jsamuelsen/managed-concurrency/internal/app"
	appctx "github.com/jsamuelsen/managed-concurrency/internal/app/context"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/metrics"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/telemetry"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

const healthCheckTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting managed-concurrency runtime",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Metrics and health registry
	m := metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	healthRegistry := ports.NewHealthRegistry(healthCheckTimeout)

	// 6. Deployment state: configured applications plus runtime overrides
	registry := deployment.NewRegistry(deployment.ApplicationsFromConfig(cfg.Applications))

	store, closeStore, err := newStatusStore(cfg.Deployment, healthRegistry, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	deploymentService := deployment.NewService(registry, store, logger)

	if cfg.Deployment.WatchFile != "" {
		stopWatcher, err := startWatcher(ctx, cfg.Deployment.WatchFile, deploymentService, logger)
		if err != nil {
			return err
		}
		defer stopWatcher()
	}

	// 7. Ambient managers and the context propagation provider
	amb := handlers.Ambient{
		Invocations:  ambient.NewInvocationManager(logger),
		Security:     ambient.SecurityManager{},
		ClassLoaders: ambient.ClassLoaderManager{},
	}

	categories, err := appctx.ParseCategories(cfg.Propagation.Contexts)
	if err != nil {
		return fmt.Errorf("propagation contexts: %w", err)
	}

	provider, err := appctx.New(appctx.Dependencies{
		Invocations:  amb.Invocations,
		Security:     amb.Security,
		ClassLoaders: amb.ClassLoaders,
		Applications: registry,
		Deployment:   deploymentService,
		Transactions: ambient.NewTransactionManager(logger),
	}, categories, appctx.WithLogger(logger), appctx.WithRecorder(m))
	if err != nil {
		return fmt.Errorf("creating context provider: %w", err)
	}

	// 8. Managed executor
	executor, err := app.NewManagedExecutor(app.ExecutorConfig{
		Name:        cfg.Executor.Name,
		Workers:     cfg.Executor.Workers,
		QueueSize:   cfg.Executor.QueueSize,
		SubmitRate:  cfg.Executor.SubmitRate,
		SubmitBurst: cfg.Executor.SubmitBurst,
		Logger:      logger,
		Recorder:    m,
	}, provider)
	if err != nil {
		return fmt.Errorf("creating executor: %w", err)
	}

	if err := healthRegistry.Register(executor.HealthChecker()); err != nil {
		return fmt.Errorf("registering executor health check: %w", err)
	}

	// 9. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, m.Handler())
	applicationsHandler := handlers.NewApplicationsHandler(deploymentService, registry, executor, amb, logger)
	realmsHandler := handlers.NewRealmsHandler(app.NewRealmService(app.TopologyFromConfig(cfg.Topology), logger))

	// 10. Create HTTP server and router
	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:              logger,
		AuthConfig:          &cfg.Auth,
		AppConfig:           &cfg.App,
		HealthHandler:       healthHandler,
		ApplicationsHandler: applicationsHandler,
		RealmsHandler:       realmsHandler,
		Security:            amb.Security,
		Timeout:             cfg.Server.RequestTimeout,
	})

	// 11. Start server (non-blocking)
	serverErr := server.Start()

	// 12. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, executor, serverErr, cfg)
}

// newStatusStore builds the enablement store. Redis is guarded by a circuit
// breaker and registered as a readiness check.
func newStatusStore(
	cfg config.DeploymentConfig,
	healthRegistry *ports.DefaultHealthRegistry,
	logger *slog.Logger,
) (deployment.StatusStore, func(), error) {
	if cfg.Store != "redis" {
		return deployment.NewMemoryStore(), func() {}, nil
	}

	client := deployment.NewRedisClient(cfg.Redis)
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Error("closing redis client", slog.Any("error", err))
		}
	}

	if err := healthRegistry.Register(deployment.NewRedisHealthChecker(client)); err != nil {
		closeClient()
		return nil, nil, fmt.Errorf("registering redis health check: %w", err)
	}

	store := deployment.NewBreakerStore(
		deployment.NewRedisStore(client, cfg.Redis.KeyPrefix),
		cfg.Redis.Breaker,
		logger,
	)

	return store, closeClient, nil
}

// startWatcher loads the applications file once and then follows changes.
func startWatcher(ctx context.Context, path string, svc *deployment.Service, logger *slog.Logger) (func(), error) {
	watcher, err := deployment.NewWatcher(path, svc, logger)
	if err != nil {
		return nil, fmt.Errorf("starting applications watcher: %w", err)
	}

	if err := watcher.Reload(ctx); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("loading applications file: %w", err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := watcher.Run(ctx); err != nil {
			logger.Error("applications watcher stopped", slog.Any("error", err))
		}
	}()

	return func() {
		_ = watcher.Close()
		<-done
	}, nil
}

// waitForShutdown blocks until a shutdown signal is received or the server
// fails. The HTTP server drains first so no new work is submitted, then the
// executor finishes its queue.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	executor *app.ManagedExecutor,
	serverErr <-chan error,
	cfg *config.Config,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error

	select {
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	logger.Info("initiating graceful shutdown",
		slog.Duration("server_timeout", cfg.Server.ShutdownTimeout),
		slog.Duration("executor_timeout", cfg.Executor.ShutdownTimeout),
	)

	serverCtx, cancelServer := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancelServer()

	if err := server.Shutdown(serverCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}

	executorCtx, cancelExecutor := context.WithTimeout(ctx, cfg.Executor.ShutdownTimeout)
	defer cancelExecutor()

	if err := executor.Shutdown(executorCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("executor shutdown: %w", err))
	}

	logger.Info("shutdown complete")

	return runErr
}
