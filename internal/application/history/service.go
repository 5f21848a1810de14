// Package history records computed runs and answers run-history queries.
// Both application services persist through it, so every run is stored,
// cached and announced the same way.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/infrastructure/database/redis"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DealScope/pkg/errors"
)

// DefaultRunCacheTTL applies when the caller passes a zero TTL.  Runs are
// immutable, so the TTL only bounds memory.
const DefaultRunCacheTTL = time.Hour

const cacheKeyPrefixRun = "run:"

// Service persists runs through a run.Repository and serves reads from the
// cache.
type Service struct {
	repo    run.Repository
	cache   redis.Cache
	ttl     time.Duration
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewService wires a Service.  A nil cache disables caching and nil metrics
// discard samples.
func NewService(repo run.Repository, cache redis.Cache, ttl time.Duration, metrics *prometheus.AppMetrics, logger logging.Logger) *Service {
	if cache == nil {
		cache = redis.NewNoopCache()
	}
	if ttl <= 0 {
		ttl = DefaultRunCacheTTL
	}
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

func runCacheKey(id uuid.UUID) string { return cacheKeyPrefixRun + id.String() }

// Record persists one computation.  A repository failure fails the call; a
// cache write failure is only logged.
func (s *Service) Record(ctx context.Context, kind run.Kind, scope run.Scope, request, result interface{}, summary string) (*run.Run, error) {
	r, err := run.New(kind, scope, request, result, summary)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.repo.Save(ctx, r)
	prometheus.RecordDBQuery(s.metrics, "runs", "save", time.Since(start), err)
	if err != nil {
		s.logger.Error("Failed to persist run",
			logging.String("kind", string(kind)),
			logging.String("pitch_id", scope.PitchID),
			logging.Err(err),
		)
		prometheus.RecordError(s.metrics, "history", string(errors.GetCode(err)))
		if _, ok := errors.AsAppError(err); ok {
			return nil, errors.Wrap(err, errors.CodeUnknown, "persist run")
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "persist run")
	}

	if err := s.cache.Set(ctx, runCacheKey(r.ID), r, s.ttl); err != nil {
		s.logger.Warn("Failed to cache run", logging.String("run_id", r.ID.String()), logging.Err(err))
	}
	return r, nil
}

// Get returns one run, read through the cache.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	if id == uuid.Nil {
		return nil, errors.InvalidParam("run id is required")
	}
	var out run.Run
	err := s.cache.GetOrSet(ctx, runCacheKey(id), &out, s.ttl, func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		r, err := s.repo.Get(ctx, id)
		prometheus.RecordDBQuery(s.metrics, "runs", "get", time.Since(start), err)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err == redis.ErrCacheMiss {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetailf("run_id=%s", id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns runs newest first.  Listings are not cached: a new run must
// show up immediately.
func (s *Service) List(ctx context.Context, f run.Filter) ([]*run.Run, error) {
	if _, err := run.ParseKind(string(f.Kind)); err != nil {
		return nil, err
	}
	start := time.Now()
	runs, err := s.repo.List(ctx, f.Normalize())
	prometheus.RecordDBQuery(s.metrics, "runs", "list", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*run.Run{}
	}
	return runs, nil
}
