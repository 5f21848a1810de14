package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DealScope/internal/interfaces/http/handlers"
	"github.com/turtacn/DealScope/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.  Nil handlers leave their routes unmounted.
type RouterConfig struct {
	// Handlers
	ValuationHandler *handlers.ValuationHandler
	CapTableHandler  *handlers.CapTableHandler
	RunHandler       *handlers.RunHandler
	HealthHandler    *handlers.HealthHandler

	// Middleware
	CORS    *middleware.CORSConfig
	Scope   middleware.ScopeConfig
	Logging middleware.LoggingConfig

	// MaxBodySize caps request bodies; zero means unlimited.
	MaxBodySize int64

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	AppMetrics       *prometheus.AppMetrics
}

// NewRouter constructs the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.AppMetrics == nil {
		cfg.AppMetrics = prometheus.NewNoopAppMetrics()
	}
	log := cfg.Logger.Named("http")

	r := gin.New()

	// --- Global middleware (applied to every request) ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(log, cfg.Logging))
	r.Use(middleware.Metrics(cfg.AppMetrics))
	if cfg.MaxBodySize > 0 {
		r.Use(bodyLimit(cfg.MaxBodySize))
	}

	// --- Probes and scrape ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	// --- API v1 (caller-scoped) ---
	api := r.Group("/api/v1")
	api.Use(middleware.RequestScope(cfg.Scope, log))
	registerValuationRoutes(api, cfg.ValuationHandler)
	registerCapTableRoutes(api, cfg.CapTableHandler)
	registerRunRoutes(api, cfg.RunHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: "COMMON_005", Message: "route not found"})
	})
	return r
}

func registerValuationRoutes(r *gin.RouterGroup, h *handlers.ValuationHandler) {
	if h == nil {
		return
	}
	r.GET("/methods", h.Methods)
	r.GET("/comps", h.Comps)

	v := r.Group("/valuations")
	v.POST("", h.Valuate)
	v.POST("/jobs", h.SubmitJob)
	v.POST("/:method", h.ValuateMethod)

	r.GET("/pitches/:pitch_id/valuations", h.ListRuns)
}

func registerCapTableRoutes(r *gin.RouterGroup, h *handlers.CapTableHandler) {
	if h == nil {
		return
	}
	ct := r.Group("/captable")
	ct.POST("/simulate", h.Simulate)
	ct.POST("/impact", h.Impact)

	r.POST("/waterfall", h.Waterfall)
	r.GET("/pitches/:pitch_id/runs", h.ListRuns)
}

func registerRunRoutes(r *gin.RouterGroup, h *handlers.RunHandler) {
	if h == nil {
		return
	}
	r.GET("/runs/:run_id", h.Get)
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
