package httpjson

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vaultkeeper-hq/vaultkeeper/db"
	web "github.com/vaultkeeper-hq/vaultkeeper/http"
	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
	"github.com/vaultkeeper-hq/vaultkeeper/services"
)

type handler struct {
	*gin.Engine

	deps    Dependencies
	baseCtx context.Context
	logger  zerolog.Logger
}

type Config struct {
	Dependencies

	Addr           string
	AllowedOrigins string
	LogRequests    bool

	// BaseContext is the lifetime of watches started over HTTP; they outlive
	// the request that created them. Defaults to context.Background().
	BaseContext context.Context

	Logger zerolog.Logger
}

type Dependencies struct {
	Database db.Database
	Registry *services.ClientRegistry
	Monitor  MonitorService
	Keeper   KeeperService
	Metrics  *services.MetricsService
}

// MonitorService defines the interface for transaction watch operations
type MonitorService interface {
	StartWatch(ctx context.Context, req models.WatchRequest)
}

// KeeperService exposes the keeper's health snapshot
type KeeperService interface {
	Health() models.KeeperHealth
}

const (
	requestTimeout = 10 * time.Second
	rwTimeout      = 15 * time.Second
)

var (
	ErrNotFound      = errors.New("not found")
	ErrParamRequired = errors.New("param required")
)

func New(cfg Config) *http.Server {
	return &http.Server{
		Addr:    cfg.Addr,
		Handler: newHandler(cfg, gin.New()),

		// Time to read the request headers/body
		ReadTimeout: rwTimeout,

		// Time to write the response
		WriteTimeout: rwTimeout,

		// Time to keep connections alive
		IdleTimeout: 60 * time.Second,

		// Max header bytes (1MB)
		MaxHeaderBytes: 1024 * 1024,
	}
}

func newHandler(cfg Config, router *gin.Engine) *handler {
	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	h := &handler{
		Engine:  router,
		deps:    cfg.Dependencies,
		baseCtx: baseCtx,
		logger:  cfg.Logger.With().Str(logging.FieldModule, "api").Logger(),
	}

	logLevel := zerolog.DebugLevel
	if cfg.LogRequests {
		logLevel = zerolog.InfoLevel
	}

	h.Use(
		gin.Recovery(),
		web.Zerolog(cfg.Logger, logLevel),
		web.Timeout(requestTimeout, cfg.Logger),
		web.CORS(cfg.AllowedOrigins),
	)

	h.setupAPIRoutes()
	h.setupObservabilityRoutes()

	return h
}

func (h *handler) setupAPIRoutes() {
	v1 := h.Group("/api/v1")

	h.setupWatchRoutes(v1)
	h.setupKeeperRoutes(v1)
}

func (h *handler) setupObservabilityRoutes() {
	h.GET("/health", h.getHealthCheck)

	if h.deps.Metrics != nil {
		h.GET("/metrics", gin.WrapH(h.deps.Metrics.GetHandler()))

		// Metrics summary endpoint for debugging
		h.GET("/api/v1/metrics", h.getMetricsSummary)
	}
}

func (h *handler) getHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) getMetricsSummary(c *gin.Context) {
	summary := h.deps.Metrics.GetMetricsSummary()
	c.JSON(http.StatusOK, summary)
}
