package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/middleware"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/ws"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/auth"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/importer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/content"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/progress"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/study"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/timer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/window"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the services the handlers drive
type Deps struct {
	Auth       *auth.Service
	Workspaces *workspace.Manager
	Notes      *content.Notes
	Progress   *progress.Tracker
	Study      *study.Assistant
	Hub        *ws.Hub
	Metrics    *monitoring.Metrics
	Breaker    *resilience.Breaker
	Logger     *zap.Logger
	Version    string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	auth       *auth.Service
	workspaces *workspace.Manager
	notes      *content.Notes
	progress   *progress.Tracker
	study      *study.Assistant
	hub        *ws.Hub
	metrics    *HandlerMetrics
	registry   *monitoring.Metrics
	breaker    *resilience.Breaker
	logger     *zap.Logger
	version    string
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := d.Version
	if version == "" {
		version = "dev"
	}
	return &Handlers{
		auth:       d.Auth,
		workspaces: d.Workspaces,
		notes:      d.Notes,
		progress:   d.Progress,
		study:      d.Study,
		hub:        d.Hub,
		metrics:    NewHandlerMetrics(d.Metrics),
		registry:   d.Metrics,
		breaker:    d.Breaker,
		logger:     logger.Named("http"),
		version:    version,
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/presets", h.ListPresets)
	api.GET("/metrics/summary", h.MetricsSummary)
	api.POST("/auth/login", h.Login)

	authed := api.Group("", middleware.Auth(h.auth))
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/session", h.Session)

	authed.GET("/workspace", h.GetWorkspace)
	authed.POST("/workspace/panels/:panel/toggle", h.TogglePanel)
	authed.PATCH("/workspace/panels/:panel/geometry", h.UpdateGeometry)
	authed.POST("/workspace/panels/:panel/front", h.BringToFront)
	authed.POST("/workspace/panels/:panel/maximize", h.ToggleMaximize)
	authed.POST("/workspace/presets/:name", h.ApplyPreset)
	authed.POST("/workspace/lock", h.Lock)
	authed.POST("/workspace/unlock", h.Unlock)

	authed.GET("/timer", h.GetTimer)
	authed.POST("/timer/start", h.StartTimer)
	authed.POST("/timer/stop", h.StopTimer)

	authed.GET("/pages", h.ListPages)
	authed.POST("/pages", h.CreatePage)
	authed.GET("/pages/:id", h.GetPage)
	authed.PATCH("/pages/:id", h.UpdatePage)
	authed.DELETE("/pages/:id", h.DeletePage)
	authed.POST("/pages/:id/blocks", h.AddBlock)
	authed.POST("/pages/:id/blocks/:blockId/move", h.MoveBlock)
	authed.POST("/import", h.ImportPage)
	authed.PATCH("/blocks/:id", h.UpdateBlock)
	authed.DELETE("/blocks/:id", h.DeleteBlock)

	authed.GET("/notifications", h.ListNotifications)
	authed.POST("/notifications/:id/read", h.MarkRead)

	authed.GET("/settings", h.GetSettings)
	authed.PATCH("/settings", h.UpdateSettings)
	authed.GET("/settings/export", h.ExportSettings)

	authed.GET("/stats", h.GetStats)
	authed.POST("/study/quiz", h.Quiz)
	authed.POST("/study/summary", h.Summary)
	authed.POST("/study/chat", h.Chat)

	authed.POST("/logs", h.StreamLogs)
	authed.GET("/stream", h.Stream)
}

// Root handles the bare liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "StudyDesk",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	remote := gin.H{"configured": h.breaker != nil}
	if h.breaker != nil {
		remote["breaker"] = h.breaker.Snapshot()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"version":    h.version,
		"workspaces": h.workspaces.Count(),
		"remote":     remote,
		"assistant":  gin.H{"available": h.study.Available()},
	})
}

// Stream upgrades to a websocket carrying the user's workspace events
func (h *Handlers) Stream(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	h.hub.Serve(c, w.Owner().ID, w.View())
}

// workspace opens the caller's workspace, writing the error response on failure
func (h *Handlers) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return nil, false
	}
	w, err := h.workspaces.Open(c.Request.Context(), identity)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return w, true
}

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, content.ErrPageNotFound),
		errors.Is(err, content.ErrBlockNotFound),
		errors.Is(err, progress.ErrNotificationNotFound),
		errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrInvalidBlockType),
		errors.Is(err, content.ErrInvalidParent),
		errors.Is(err, workspace.ErrInvalidSettings),
		errors.Is(err, workspace.ErrUnknownFormat),
		errors.Is(err, window.ErrInvalidGeometry),
		errors.Is(err, timer.ErrInvalidMode),
		errors.Is(err, timer.ErrInvalidDuration),
		errors.Is(err, types.ErrUnknownPanel),
		errors.Is(err, persistence.ErrMissingID),
		errors.Is(err, auth.ErrUnknownProvider),
		errors.Is(err, importer.ErrUnsupported),
		errors.Is(err, importer.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes the error response for err. Internal errors are logged and
// not echoed to the client.
func (h *Handlers) fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		tracing.Logger(c.Request.Context(), h.logger).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user", c.GetString(middleware.UserIDKey)),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
