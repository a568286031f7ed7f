package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/handlers"
	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/middleware"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/telemetry"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	Logger     *slog.Logger
	AuthConfig *config.AuthConfig
	AppConfig  *config.AppConfig

	HealthHandler       *handlers.HealthHandler
	ApplicationsHandler *handlers.ApplicationsHandler
	RealmsHandler       *handlers.RealmsHandler

	// Security receives the caller identity of each request's thread.
	Security ports.SecurityContextManager

	// Timeout bounds /api/v1 requests. Zero disables it.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Global middleware, first to last:
//  1. Recovery
//  2. Request ID
//  3. Correlation ID
//  4. OpenTelemetry tracing and request metrics
//  5. Logging (skips /-/ endpoints)
//
// /api/v1 adds the request timeout, caller authentication and the
// managed-thread binder, in that order. Enabling and disabling applications
// requires the admin role.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	serviceName := "managed-concurrency"
	if cfg.AppConfig != nil && cfg.AppConfig.Name != "" {
		serviceName = cfg.AppConfig.Name
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(serviceName)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Mount(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	apiV1.Use(
		middleware.Authenticate(cfg.AuthConfig),
		middleware.BindThread(cfg.Security),
	)

	setupAPIRoutes(apiV1, cfg)
}

func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	adminRole := "admin"
	if cfg.AuthConfig != nil && cfg.AuthConfig.AdminRole != "" {
		adminRole = cfg.AuthConfig.AdminRole
	}

	if h := cfg.ApplicationsHandler; h != nil {
		apps := rg.Group("/applications")
		apps.GET("", h.List)
		apps.POST("/:name/probe", h.Probe)

		admin := apps.Group("", middleware.RequireRole(cfg.AuthConfig, adminRole))
		admin.POST("/:name/enable", h.Enable)
		admin.POST("/:name/disable", h.Disable)

		rg.GET("/executor", h.Stats)
	}

	if cfg.RealmsHandler != nil {
		rg.GET("/realms", cfg.RealmsHandler.List)
	}
}

// SetupMinimalRouter registers only the health endpoints.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
	)

	if healthHandler != nil {
		healthHandler.Mount(engine)
	}
}
