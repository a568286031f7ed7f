package handlers

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/dto"
	"github.com/jsamuelsen/managed-concurrency/internal/app"
	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// Deployment is the deployment surface the admin API drives.
type Deployment interface {
	ports.Deployment
	Applications(ctx context.Context) []domain.Application
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
}

// Executor runs probe tasks.
type Executor interface {
	Submit(ctx context.Context, task app.Task, opts ...app.SubmitOption) (*app.Future, error)
	Stats() app.ExecutorStats
}

// Ambient groups the per-thread state managers a probe sets up and reads.
type Ambient struct {
	Invocations  ports.InvocationManager
	Security     ports.SecurityContextManager
	ClassLoaders ports.ClassLoaderManager
}

// ApplicationsHandler serves the application admin endpoints.
type ApplicationsHandler struct {
	deployment   Deployment
	applications ports.Applications
	executor     Executor
	ambient      Ambient
	logger       *slog.Logger
}

// NewApplicationsHandler creates the handler. applications resolves the
// configured state; deployment reports the effective one.
func NewApplicationsHandler(
	deployment Deployment,
	applications ports.Applications,
	executor Executor,
	ambient Ambient,
	logger *slog.Logger,
) *ApplicationsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ApplicationsHandler{
		deployment:   deployment,
		applications: applications,
		executor:     executor,
		ambient:      ambient,
		logger:       logger.With(slog.String("component", "applications-handler")),
	}
}

// List handles GET /api/v1/applications. Results are sorted by name and
// paged with an opaque cursor.
func (h *ApplicationsHandler) List(c *gin.Context) {
	var page dto.PageRequest
	if err := dto.BindQueryAndValidate(c, &page); err != nil {
		dto.RespondWithValidationErrors(c, err)
		return
	}

	after, err := page.After()
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	apps := h.deployment.Applications(ctx)
	slices.SortFunc(apps, func(a, b domain.Application) int { return cmp.Compare(a.Name, b.Name) })

	limit := page.GetLimit()
	items := make([]dto.ApplicationResponse, 0, limit+1)

	for _, a := range apps {
		if a.Name <= after {
			continue
		}

		items = append(items, h.toResponse(ctx, a))
		if len(items) > limit {
			break
		}
	}

	c.JSON(http.StatusOK, dto.NewPage(items, limit, func(a dto.ApplicationResponse) string { return a.Name }))
}

func (h *ApplicationsHandler) toResponse(ctx context.Context, effective domain.Application) dto.ApplicationResponse {
	resp := dto.ApplicationResponse{
		Name:    effective.Name,
		Modules: slices.Clone(effective.Modules),
		Enabled: effective.Enabled,
	}

	if configured, ok := h.applications.LookupApplication(ctx, effective.Name); ok {
		resp.Configured = configured.Enabled
	}

	if resp.Modules == nil {
		resp.Modules = []string{}
	}

	return resp
}

// Enable handles POST /api/v1/applications/:name/enable.
func (h *ApplicationsHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable handles POST /api/v1/applications/:name/disable. Tasks already
// queued for the application will refuse to start.
func (h *ApplicationsHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *ApplicationsHandler) setEnabled(c *gin.Context, enabled bool) {
	var path dto.ApplicationPath
	if !bindPath(c, &path) {
		return
	}

	ctx := c.Request.Context()

	set := h.deployment.Disable
	if enabled {
		set = h.deployment.Enable
	}

	if err := set(ctx, path.Name); err != nil {
		dto.HandleError(c, err)
		return
	}

	application, _ := h.applications.LookupApplication(ctx, path.Name)
	if application == nil {
		dto.HandleError(c, domain.NewNotFoundError("application", path.Name))
		return
	}

	effective := *application
	effective.Enabled = h.deployment.IsAppEnabled(ctx, application)

	c.JSON(http.StatusOK, h.toResponse(ctx, effective))
}

// Probe handles POST /api/v1/applications/:name/probe. The request thread
// enters the application as a web invocation, then submits a task that
// reports the context it observes on the worker.
func (h *ApplicationsHandler) Probe(c *gin.Context) {
	var path dto.ApplicationPath
	if !bindPath(c, &path) {
		return
	}

	var req dto.ProbeRequest
	if c.Request.ContentLength > 0 {
		if err := dto.BindAndValidate(c, &req); err != nil {
			dto.RespondWithValidationErrors(c, err)
			return
		}
	}

	ctx := c.Request.Context()

	application, ok := h.applications.LookupApplication(ctx, path.Name)
	if !ok {
		dto.HandleError(c, domain.NewNotFoundError("application", path.Name))
		return
	}

	exit, err := h.enter(ctx, application)
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	defer exit()

	opts := make([]app.SubmitOption, 0, len(req.Properties)+1)
	if req.IdentityName != "" {
		opts = append(opts, app.WithIdentityName(req.IdentityName))
	}

	for k, v := range req.Properties {
		opts = append(opts, app.WithProperty(k, v))
	}

	submitted := time.Now()

	future, err := h.executor.Submit(ctx, h.probeTask(application.Name, submitted), opts...)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	value, err := future.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			future.Cancel()
		}

		h.respondTaskError(c, err)

		return
	}

	resp, _ := value.(*dto.ProbeResponse)
	if resp == nil {
		dto.HandleError(c, errors.New("probe task returned no report"))
		return
	}

	resp.IdentityName = req.IdentityName
	c.JSON(http.StatusOK, resp)
}

// enter makes the request thread act inside application and returns the
// function that leaves it again.
func (h *ApplicationsHandler) enter(ctx context.Context, application *domain.Application) (func(), error) {
	loader := &domain.ClassLoader{Name: application.Name + "-loader", Application: application.Name}
	previous := h.ambient.ClassLoaders.SetContextClassLoader(ctx, loader)

	var module string
	if len(application.Modules) > 0 {
		module = application.Modules[0]
	}

	record := &domain.InvocationRecord{
		ComponentID: application.Name + "#admin-probe",
		Type:        domain.InvocationServlet,
		AppName:     application.Name,
		ModuleName:  module,
		Naming: &domain.NamingEnvironment{Bindings: map[string]any{
			"app/name": application.Name,
		}},
	}

	if err := h.ambient.Invocations.Push(ctx, record); err != nil {
		h.ambient.ClassLoaders.SetContextClassLoader(ctx, previous)
		return nil, err
	}

	return func() {
		if err := h.ambient.Invocations.Pop(ctx, record); err != nil {
			logging.FromContextOr(ctx, h.logger).WarnContext(ctx, "leaving probe invocation", slog.Any("error", err))
		}

		h.ambient.ClassLoaders.SetContextClassLoader(ctx, previous)
	}, nil
}

func (h *ApplicationsHandler) probeTask(appName string, submitted time.Time) app.Task {
	return func(ctx context.Context) (any, error) {
		resp := &dto.ProbeResponse{
			TaskID:      logging.TaskIDFromContext(ctx),
			Application: appName,
			Elapsed:     time.Since(submitted),
		}

		if thread, ok := ports.ThreadFromContext(ctx); ok {
			resp.Thread = thread.Name()
		}

		if sc := h.ambient.Security.CurrentSecurityContext(ctx); sc != nil {
			resp.Principal = sc.Principal
			resp.Roles = slices.Clone(sc.Roles)
		}

		if loader := h.ambient.ClassLoaders.ContextClassLoader(ctx); loader != nil {
			resp.ClassLoader = loader.Name
		}

		if inv := h.ambient.Invocations.CurrentInvocation(ctx); inv != nil {
			resp.ComponentID = inv.ComponentID
			_, resp.NamingPropagated = inv.Naming.Lookup("app/name")
		}

		return resp, nil
	}
}

func (h *ApplicationsHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		dto.RespondWithCode(c, dto.ErrorCodeTimeout, "probe did not finish before the request deadline")
	case errors.Is(err, app.ErrQueueFull), errors.Is(err, app.ErrExecutorShutdown):
		dto.RespondWithCode(c, dto.ErrorCodeSaturated, err.Error())
	default:
		dto.HandleError(c, err)
	}
}

// Stats handles GET /api/v1/executor.
func (h *ApplicationsHandler) Stats(c *gin.Context) {
	s := h.executor.Stats()

	c.JSON(http.StatusOK, dto.ExecutorStatsResponse{
		Name:          s.Name,
		Workers:       s.Workers,
		BusyWorkers:   s.BusyWorkers,
		QueueDepth:    s.QueueDepth,
		QueueCapacity: s.QueueCapacity,
		Completed:     s.Completed,
		ShuttingDown:  s.ShuttingDown,
	})
}

// bindPath binds and validates URI parameters, answering 400 on failure.
func bindPath(c *gin.Context, v any) bool {
	if err := c.ShouldBindUri(v); err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, err.Error())
		return false
	}

	if err := dto.Validate(v); err != nil {
		dto.RespondWithValidationErrors(c, err)
		return false
	}

	return true
}
