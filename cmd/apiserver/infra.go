package main

import (
	"context"
	"fmt"

	"github.com/turtacn/DealScope/internal/config"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/domain/run"
	pgconn "github.com/turtacn/DealScope/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/DealScope/internal/infrastructure/database/postgres/repositories"
	redisclient "github.com/turtacn/DealScope/internal/infrastructure/database/redis"
	"github.com/turtacn/DealScope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DealScope/internal/interfaces/http/handlers"
)

const eventSource = "dealscope-apiserver"

// infrastructure holds the external clients of the API server.  Redis and
// Kafka are optional; PostgreSQL is not.
type infrastructure struct {
	pg       *pgconn.Connection
	redis    *redisclient.Client
	producer *kafka.Producer

	runs    run.Repository
	library comps.Repository
	cache   redisclient.Cache
	events  *kafka.EventPublisher
}

func (i *infrastructure) Close() {
	if i.producer != nil {
		_ = i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.pg != nil {
		_ = i.pg.Close()
	}
}

// checkers lists the health probes of the configured dependencies.
func (i *infrastructure) checkers() []handlers.HealthChecker {
	out := []handlers.HealthChecker{handlers.CheckFunc("postgres", i.pg.HealthCheck)}
	if i.redis != nil {
		out = append(out, handlers.CheckFunc("redis", i.redis.Ping))
	}
	return out
}

func initInfrastructure(ctx context.Context, cfg *config.Config, metrics *prometheus.AppMetrics, logger logging.Logger) (*infrastructure, error) {
	infra := &infrastructure{cache: redisclient.NewNoopCache()}

	pg, err := pgconn.NewConnection(cfg.Database, logger.Named("postgres"))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	infra.pg = pg
	if cfg.Database.AutoMigrate {
		if err := pgconn.NewMigrator(pg, logger.Named("migrate")).Up(); err != nil {
			infra.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	infra.runs = pgrepo.NewPostgresRunRepo(pg, logger)
	infra.library = pgrepo.NewPostgresCompsRepo(pg, logger)

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

	if cfg.Kafka.Enabled {
		if err := ensureTopics(ctx, cfg.Kafka, logger); err != nil {
			// The broker may auto-create topics; publishing decides.
			logger.Warn("Failed to ensure Kafka topics", logging.Err(err))
		}
		p, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), logger.Named("kafka"), kafka.WithProducerMetrics(metrics))
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		infra.producer = p
		infra.events = kafka.NewEventPublisher(p, eventSource, logger)
	}

	logger.Info("Infrastructure initialized",
		logging.Bool("redis", infra.redis != nil),
		logging.Bool("kafka", infra.producer != nil),
	)
	return infra, nil
}

func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger.Named("kafka"))
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(1))
}
