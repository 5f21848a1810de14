// Worker entry point for DealScope: consumes valuation.requested jobs from
// Kafka, runs them and records the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/DealScope/internal/application/history"
	valapp "github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/config"
	pgconn "github.com/turtacn/DealScope/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/DealScope/internal/infrastructure/database/postgres/repositories"
	redisclient "github.com/turtacn/DealScope/internal/infrastructure/database/redis"
	"github.com/turtacn/DealScope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/DealScope/internal/interfaces/http"
	"github.com/turtacn/DealScope/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var version = "dev"

const (
	defaultHealthPort = 8081
	eventSource       = "dealscope-worker"
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	workers := flag.Int("workers", 0, "number of consumers in the group (default: worker.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the /healthz, /readyz and /metrics endpoints")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "the worker requires kafka.enabled=true")
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("worker")

	numConsumers := cfg.Worker.Concurrency
	if *workers > 0 {
		numConsumers = *workers
	}
	logger.Info("Starting DealScope worker",
		logging.String("version", version),
		logging.Int("consumers", numConsumers),
		logging.String("topic", kafka.TopicValuationRequested),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create metrics collector", logging.Err(err))
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	infra, err := initWorkerInfrastructure(cfg, appMetrics, logger)
	if err != nil {
		logger.Fatal("Failed to initialize infrastructure", logging.Err(err))
	}
	defer infra.Close()

	events := kafka.NewEventPublisher(infra.producer, eventSource, logger)
	runs := history.NewService(pgrepo.NewPostgresRunRepo(infra.pg, logger), infra.cache, cfg.Valuation.ResultCacheTTL, appMetrics, logger)
	svc, err := valapp.NewService(valapp.Deps{
		History:  runs,
		Notifier: history.NewNotifier(events, appMetrics, logger),
		Comps:    pgrepo.NewPostgresCompsRepo(infra.pg, logger),
		Cache:    infra.cache,
		Metrics:  appMetrics,
		Logger:   logger,
		Config:   cfg.Valuation,
	})
	if err != nil {
		logger.Fatal("Failed to create valuation service", logging.Err(err))
	}

	var locks valapp.Locker
	if infra.redis != nil {
		locks = redisclient.NewLockFactory(infra.redis, logger.Named("lock"))
	}
	jobs := valapp.NewJobHandler(svc, locks, valapp.DefaultJobLockTTL, logger)

	consumers := make([]*kafka.Consumer, 0, numConsumers)
	for i := 0; i < numConsumers; i++ {
		c, err := kafka.NewConsumer(
			kafka.ConsumerConfigFrom(cfg.Kafka, cfg.Worker, kafka.TopicValuationRequested),
			logger.Named(fmt.Sprintf("consumer-%d", i)),
			kafka.WithDeadLetter(infra.producer),
			kafka.WithConsumerMetrics(appMetrics),
		)
		if err != nil {
			logger.Fatal("Failed to create Kafka consumer", logging.Err(err))
		}
		c.Subscribe(kafka.TopicValuationRequested, jobs.Handle)
		consumers = append(consumers, c)
	}

	health := handlers.NewHealthHandler(version, infra.checkers()...)
	healthSrv := httpserver.NewServer(
		config.ServerConfig{Port: *healthPort},
		httpserver.NewRouter(httpserver.RouterConfig{
			HealthHandler:    health,
			Logger:           logger,
			MetricsCollector: collector,
			AppMetrics:       appMetrics,
		}),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(healthSrv.Start)
	for _, c := range consumers {
		if err := c.Start(gctx); err != nil {
			logger.Fatal("Failed to start Kafka consumer", logging.Err(err))
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				logger.Warn("Consumer close error", logging.Err(err))
			}
		}
		return healthSrv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", logging.Err(err))
	}
	var processed, deadLettered int64
	for _, c := range consumers {
		processed += c.Processed()
		deadLettered += c.DeadLettered()
	}
	logger.Info("Worker stopped",
		logging.Int64("processed", processed),
		logging.Int64("dead_lettered", deadLettered),
	)
}

// workerInfrastructure holds the external clients of the worker.  Redis is
// optional; without it job de-duplication and caching are off.
type workerInfrastructure struct {
	pg       *pgconn.Connection
	redis    *redisclient.Client
	producer *kafka.Producer
	cache    redisclient.Cache
}

func (w *workerInfrastructure) Close() {
	if w.producer != nil {
		_ = w.producer.Close()
	}
	if w.redis != nil {
		_ = w.redis.Close()
	}
	if w.pg != nil {
		_ = w.pg.Close()
	}
}

func (w *workerInfrastructure) checkers() []handlers.HealthChecker {
	out := []handlers.HealthChecker{handlers.CheckFunc("postgres", w.pg.HealthCheck)}
	if w.redis != nil {
		out = append(out, handlers.CheckFunc("redis", w.redis.Ping))
	}
	return out
}

func initWorkerInfrastructure(cfg *config.Config, metrics *prometheus.AppMetrics, logger logging.Logger) (*workerInfrastructure, error) {
	infra := &workerInfrastructure{cache: redisclient.NewNoopCache()}

	pg, err := pgconn.NewConnection(cfg.Database, logger.Named("postgres"))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	infra.pg = pg

	if cfg.Redis.Enabled {
		rc, err := redisclient.NewClient(cfg.Redis, logger.Named("redis"))
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		infra.redis = rc
		infra.cache = redisclient.NewRedisCache(rc, logger.Named("cache"),
			redisclient.WithDefaultTTL(cfg.Valuation.ResultCacheTTL),
			redisclient.WithMetrics(metrics, "redis"),
		)
	}

	p, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), logger.Named("kafka"), kafka.WithProducerMetrics(metrics))
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("kafka: %w", err)
	}
	infra.producer = p

	logger.Info("Worker infrastructure initialized", logging.Bool("redis", infra.redis != nil))
	return infra, nil
}
