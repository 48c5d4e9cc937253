package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bomstudio/internal/intake"
	"bomstudio/internal/logging"
	"bomstudio/internal/services"
	"bomstudio/internal/store"
	"bomstudio/internal/video"
)

// RequestIDHeader carries the correlation id in and out.
const RequestIDHeader = "X-Request-ID"

// ClientIDHeader identifies the calling client for ownership checks.
const ClientIDHeader = "X-Client-ID"

// Pipeline is the orchestrator surface used by the API.
type Pipeline interface {
	Retry(ctx context.Context, videoID string) (*store.Video, error)
	Running() []string
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Store    store.Store
	Videos   *video.Service
	Pipeline Pipeline
	Intake   *intake.Handler
	Logger   *slog.Logger
	APIToken string
}

type handlers struct {
	store    store.Store
	videos   *video.Service
	pipeline Pipeline
	intake   *intake.Handler
	logger   *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	logger := logging.NewComponentLogger(d.Logger, "api")
	h := &handlers{
		store:    d.Store,
		videos:   d.Videos,
		pipeline: d.Pipeline,
		intake:   d.Intake,
		logger:   logger,
	}

	r := gin.New()
	r.Use(requestID(), requestLogger(logger), gin.Recovery())
	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	v1.GET("/health", h.health)

	hooks := v1.Group("/webhooks")
	hooks.POST("/tally", h.tallyWebhook)
	hooks.POST("/stripe", h.stripeWebhook)
	hooks.POST("/n8n", h.n8nWebhook)

	authed := v1.Group("", bearerAuth(d.APIToken))

	clients := authed.Group("/clients")
	clients.GET("", h.listClients)
	clients.POST("", h.createClient)
	clients.GET("/:id", h.getClient)
	clients.PATCH("/:id", h.updateClient)
	clients.DELETE("/:id", h.deleteClient)

	projects := authed.Group("/projects")
	projects.GET("", h.listProjects)
	projects.POST("", h.createProject)
	projects.GET("/:id", h.getProject)
	projects.PATCH("/:id", h.updateProject)
	projects.DELETE("/:id", h.deleteProject)

	videos := authed.Group("/videos")
	videos.GET("", h.listVideos)
	videos.POST("", h.createVideo)
	videos.GET("/:id", h.getVideo)
	videos.PATCH("/:id", h.updateVideo)
	videos.DELETE("/:id", h.deleteVideo)
	videos.GET("/:id/assets", h.listAssets)
	videos.POST("/:id/submit", h.submitVideo)
	videos.POST("/:id/approve", h.approveVideo)
	videos.POST("/:id/reject", h.rejectVideo)
	videos.POST("/:id/deliver", h.deliverVideo)
	videos.POST("/:id/retry", h.retryVideo)

	authed.GET("/assets/:id", h.getAsset)
	authed.GET("/usage", h.listUsage)

	return r
}

func (h *handlers) health(c *gin.Context) {
	running := 0
	if h.pipeline != nil {
		running = len(h.pipeline.Running())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pipelines_running": running})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logging.WithContext(c.Request.Context(), logger).Log(c.Request.Context(), level, "http request",
			logging.String(logging.FieldEventType, "http_request"),
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", status),
			logging.Duration("duration", time.Since(start)),
		)
	}
}
