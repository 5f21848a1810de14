// API server entry point for DealScope.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	capapp "github.com/turtacn/DealScope/internal/application/captable"
	"github.com/turtacn/DealScope/internal/application/history"
	valapp "github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/config"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/DealScope/internal/interfaces/http"
	"github.com/turtacn/DealScope/internal/interfaces/http/handlers"
	"github.com/turtacn/DealScope/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	requireOrg := flag.Bool("require-org", false, "reject API requests without an X-Org-ID header")
	flag.Parse()

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := logging.NewLogger(cfg.Log.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("apiserver")

	if *configPath != "" {
		watchLogLevel(*configPath, logger)
	}

	logger.Info("Starting DealScope API server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()),
		logging.Bool("grpc", cfg.GRPC.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── metrics ──────────────────────────────────────────────────────────────
	collector := prometheus.NewNoopCollector()
	if cfg.Metrics.Enabled {
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create metrics collector", logging.Err(err))
		}
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	// ── infrastructure ───────────────────────────────────────────────────────
	infra, err := initInfrastructure(ctx, cfg, appMetrics, logger)
	if err != nil {
		logger.Fatal("Failed to initialize infrastructure", logging.Err(err))
	}
	defer infra.Close()

	// ── services ─────────────────────────────────────────────────────────────
	var events history.EventPublisher
	if infra.events != nil {
		events = infra.events
	}
	runs := history.NewService(infra.runs, infra.cache, cfg.Valuation.ResultCacheTTL, appMetrics, logger)
	notifier := history.NewNotifier(events, appMetrics, logger)

	valuations, err := valapp.NewService(valapp.Deps{
		History:  runs,
		Notifier: notifier,
		Jobs:     events,
		Comps:    infra.library,
		Cache:    infra.cache,
		Metrics:  appMetrics,
		Logger:   logger,
		Config:   cfg.Valuation,
	})
	if err != nil {
		logger.Fatal("Failed to create valuation service", logging.Err(err))
	}
	capTables, err := capapp.NewService(capapp.Deps{
		History:  runs,
		Notifier: notifier,
		Metrics:  appMetrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Failed to create cap-table service", logging.Err(err))
	}

	// ── HTTP ─────────────────────────────────────────────────────────────────
	gin.SetMode(cfg.Server.Mode)
	scope := middleware.DefaultScopeConfig()
	scope.RequireOrg = *requireOrg

	routerCfg := httpserver.RouterConfig{
		ValuationHandler: handlers.NewValuationHandler(valuations, logger),
		CapTableHandler:  handlers.NewCapTableHandler(capTables, logger),
		RunHandler:       handlers.NewRunHandler(runs),
		HealthHandler:    handlers.NewHealthHandler(version, infra.checkers()...),
		Scope:            scope,
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           logger,
		AppMetrics:       appMetrics,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		routerCfg.CORS = &cors
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = collector
	}
	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Error("HTTP server error", logging.Err(err))
			stop()
		}
	}()

	// ── gRPC health ──────────────────────────────────────────────────────────
	var grpcSrv *grpc.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpc.NewServer()
		hs := health.NewServer()
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcSrv, hs)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", logging.Err(err))
		}
		go func() {
			logger.Info("gRPC health server listening", logging.Int("port", cfg.GRPC.Port))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server error", logging.Err(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	logger.Info("Servers stopped")
}

// watchLogLevel applies log.level changes from the config file at runtime.
func watchLogLevel(path string, logger logging.Logger) {
	err := config.Watch(path, func(c *config.Config) {
		level, err := logging.ParseLevel(c.Log.Level)
		if err != nil {
			return
		}
		logger.SetLevel(level)
		logger.Info("Log level changed", logging.String("level", level.String()))
	}, func(err error) {
		logger.Warn("Ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("Config watch disabled", logging.Err(err))
	}
}
