// Package handlers holds the admin API's gin handlers.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// BuildInfo describes the running binary. main fills it from ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo records the toolchain that built the binary alongside the
// given stamps.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime, GoVersion: runtime.Version()}
}

// HealthHandler serves the /-/ endpoints that orchestrators and scrapers
// poll. None of them require authentication.
type HealthHandler struct {
	registry ports.HealthRegistry
	build    BuildInfo
	metrics  http.Handler
	started  time.Time
}

// NewHealthHandler wires readiness to registry. A nil metrics handler serves
// the default Prometheus registry.
func NewHealthHandler(registry ports.HealthRegistry, build BuildInfo, metrics http.Handler) *HealthHandler {
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	return &HealthHandler{registry: registry, build: build, metrics: metrics, started: time.Now()}
}

type livenessResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Liveness answers 200 for as long as the process can serve HTTP.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	})
}

type readinessResponse struct {
	Status ports.HealthStatus            `json:"status"`
	Checks map[string]*ports.CheckResult `json:"checks,omitempty"`
}

// Readiness runs every registered check. A degraded runtime stays in
// rotation; an unhealthy one answers 503.
func (h *HealthHandler) Readiness(c *gin.Context) {
	result := h.registry.CheckAll(c.Request.Context())

	code := http.StatusServiceUnavailable
	if result.Status.Serving() {
		code = http.StatusOK
	}

	c.JSON(code, readinessResponse{Status: result.Status, Checks: result.Checks})
}

// Build serves the binary's build stamps.
func (h *HealthHandler) Build(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// Routes registers the probes under rg.
func (h *HealthHandler) Routes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.Build)
	rg.GET("/metrics", gin.WrapH(h.metrics))
}

// Mount registers the probes under /-/ on engine.
func (h *HealthHandler) Mount(engine *gin.Engine) {
	h.Routes(engine.Group("/-"))
}
