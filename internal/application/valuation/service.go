// Package valuation orchestrates valuation batches: it resolves comparables
// from the library, applies configured spreads, runs the aggregator, and
// records, caches and announces the run.
package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DealScope/internal/application/history"
	"github.com/turtacn/DealScope/internal/config"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/domain/run"
	domain "github.com/turtacn/DealScope/internal/domain/valuation"
	"github.com/turtacn/DealScope/internal/infrastructure/database/redis"
	"github.com/turtacn/DealScope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// MaxBatchSize bounds the number of method requests in one call.
const MaxBatchSize = 20

const (
	cacheKeyPrefixComps = "comps:"
	defaultCompsTTL     = 6 * time.Hour
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// RequestContext names who a call runs for.  Every service call takes one
// explicitly.
type RequestContext struct {
	OrgID   string
	UserID  string
	PitchID string
}

// Scope converts rc to the persisted run scope.
func (rc RequestContext) Scope() run.Scope {
	return run.Scope{OrgID: rc.OrgID, UserID: rc.UserID, PitchID: rc.PitchID}
}

// ValuateRequest is a batch of method requests for one pitch.
type ValuateRequest struct {
	PitchID  string              `json:"pitch_id,omitempty"`
	Pitch    *domain.PitchInputs `json:"pitch,omitempty"`
	Requests []domain.Request    `json:"requests"`
}

// Validate checks batch bounds.  Per-method inputs are validated by the
// methods themselves so that one bad entry fails only its own slot.
func (r *ValuateRequest) Validate() error {
	if r == nil || len(r.Requests) == 0 {
		return errors.InvalidInput("at least one valuation request is required")
	}
	if len(r.Requests) > MaxBatchSize {
		return errors.InvalidInput(fmt.Sprintf("at most %d valuation requests per batch", MaxBatchSize)).
			WithDetailf("requests=%d", len(r.Requests))
	}
	return nil
}

// ValuateResponse is the batch outcome.  Outcomes keep request order.
type ValuateResponse struct {
	PitchID   string               `json:"pitch_id,omitempty"`
	RunID     string               `json:"run_id,omitempty"`
	Outcomes  []domain.Outcome     `json:"outcomes"`
	Consensus domain.ConsensusBand `json:"consensus"`
}

// Job acknowledges an asynchronous valuation request.
type Job struct {
	JobID       string    `json:"job_id"`
	PitchID     string    `json:"pitch_id,omitempty"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// MethodInfo describes one valuation method for listings.
type MethodInfo struct {
	Method      domain.Method `json:"method"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
}

// Catalog lists the supported methods in canonical order.
func Catalog() []MethodInfo {
	desc := map[domain.Method][2]string{
		domain.MethodScorecard: {"Scorecard", "Weighted factor scores mapped to an ARR multiple of comparable_arr"},
		domain.MethodVC:        {"VC Method", "Exit value discounted by the required return, net of investment and expected dilution"},
		domain.MethodComps:     {"Comparables", "Quartiles of comparable multiples applied to target revenue"},
		domain.MethodBerkus:    {"Berkus", "Sum of five de-risking criteria, each graded up to the per-criterion ceiling"},
		domain.MethodRFS:       {"Risk Factor Summation", "Base valuation adjusted by twelve graded risk factors"},
	}
	out := make([]MethodInfo, 0, len(desc))
	for _, m := range domain.Methods() {
		d := desc[m]
		out = append(out, MethodInfo{Method: m, Name: d[0], Description: d[1]})
	}
	return out
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Deps are the collaborators of Service.  History is required; everything
// else degrades to a no-op.
type Deps struct {
	History  *history.Service
	Notifier *history.Notifier
	// Jobs publishes valuation.requested events; nil disables Submit.
	Jobs    history.EventPublisher
	Comps   comps.Repository
	Cache   redis.Cache
	Metrics *prometheus.AppMetrics
	Logger  logging.Logger
	Config  config.ValuationConfig
}

// Service runs valuation batches.
type Service struct {
	agg      *domain.Aggregator
	history  *history.Service
	notifier *history.Notifier
	jobs     history.EventPublisher
	comps    comps.Repository
	cache    redis.Cache
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
	cfg      config.ValuationConfig
	defaults domain.Defaults
}

// NewService builds a Service from d.
func NewService(d Deps) (*Service, error) {
	if d.History == nil {
		return nil, errors.Internal("valuation service requires a run history")
	}
	if d.Cache == nil {
		d.Cache = redis.NewNoopCache()
	}
	if d.Metrics == nil {
		d.Metrics = prometheus.NewNoopAppMetrics()
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Notifier == nil {
		d.Notifier = history.NewNotifier(nil, d.Metrics, d.Logger)
	}
	if d.Config.CompsCacheTTL <= 0 {
		d.Config.CompsCacheTTL = defaultCompsTTL
	}
	return &Service{
		agg:      domain.NewAggregator(),
		history:  d.History,
		notifier: d.Notifier,
		jobs:     d.Jobs,
		comps:    d.Comps,
		cache:    d.Cache,
		metrics:  d.Metrics,
		logger:   d.Logger.Named("valuation"),
		cfg:      d.Config,
		defaults: d.Config.Defaults(),
	}, nil
}

// Valuate runs every request, persists the batch as one run and publishes
// valuation.completed.  Method failures are reported in their outcome slot;
// only invalid batches and persistence failures fail the call.
func (s *Service) Valuate(ctx context.Context, rc RequestContext, req *ValuateRequest) (*ValuateResponse, error) {
	return s.valuate(ctx, rc, req, "")
}

func (s *Service) valuate(ctx context.Context, rc RequestContext, req *ValuateRequest, jobID string) (*ValuateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	scope := rc.Scope()
	if scope.PitchID == "" {
		scope.PitchID = req.PitchID
	} else if req.PitchID != "" && req.PitchID != scope.PitchID {
		return nil, errors.InvalidParam("pitch_id does not match the request context").
			WithDetailf("context=%q body=%q", scope.PitchID, req.PitchID)
	}

	var pitch domain.PitchInputs
	if req.Pitch != nil {
		pitch = *req.Pitch
	}
	log := s.logger.With(logging.String("pitch_id", scope.PitchID), logging.String("org_id", scope.OrgID))

	outcomes := make([]domain.Outcome, 0, len(req.Requests))
	for i, r := range req.Requests {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "valuation cancelled").WithDetailf("completed=%d", i)
		}
		start := time.Now()
		out := s.runOne(ctx, pitch, r)
		prometheus.RecordValuationRun(s.metrics, string(out.Method), time.Since(start), outcomeErr(out))
		if !out.OK() {
			log.Debug("Valuation method failed",
				logging.String("method", string(out.Method)),
				logging.String("code", string(out.Err.Code)),
				logging.String("message", out.Err.Message),
			)
		}
		outcomes = append(outcomes, out)
	}

	consensus := domain.Consensus(outcomes)
	prometheus.RecordAggregate(s.metrics, consensus.Succeeded, consensus.Failed)

	resp := &ValuateResponse{PitchID: scope.PitchID, Outcomes: outcomes, Consensus: consensus}
	rec, err := s.history.Record(ctx, run.KindValuation, scope, req, resp, summarize(consensus))
	if err != nil {
		return nil, err
	}
	resp.RunID = rec.ID.String()

	s.notifier.Notify(ctx, kafka.TopicValuationCompleted, kafka.EventValuationCompleted, scope.PitchID, kafka.ValuationCompletedPayload{
		JobID:       jobID,
		RunID:       resp.RunID,
		Scope:       scope,
		Succeeded:   consensus.Succeeded,
		Failed:      consensus.Failed,
		ConsensusLo: consensus.Low,
		ConsensusHi: consensus.High,
		CompletedAt: time.Now().UTC(),
	})

	log.Info("Valuation batch completed",
		logging.String("run_id", resp.RunID),
		logging.Int("succeeded", consensus.Succeeded),
		logging.Int("failed", consensus.Failed),
	)
	return resp, nil
}

// runOne resolves one request against the pitch and library and computes it.
func (s *Service) runOne(ctx context.Context, pitch domain.PitchInputs, r domain.Request) domain.Outcome {
	in := r.Input
	if in == nil {
		var err error
		if in, err = domain.DecodeInput(r.MethodName, r.Inputs); err != nil {
			return failed(domain.Method(r.MethodName), err)
		}
	}
	if ci, ok := in.(*domain.CompsInput); ok {
		resolved, err := s.resolveComps(ctx, pitch, ci)
		if err != nil {
			return failed(domain.MethodComps, err)
		}
		in = resolved
	}
	return s.agg.Run([]domain.Request{{Input: domain.WithDefaults(in, s.defaults)}})[0]
}

// resolveComps fills an empty sample from the library.  The library key
// falls back to the pitch's sector, stage and geography.  Without a sector
// the input is left for the method to reject.
func (s *Service) resolveComps(ctx context.Context, pitch domain.PitchInputs, in *domain.CompsInput) (*domain.CompsInput, error) {
	cp := *in
	if cp.TargetRevenue == 0 && pitch.CurrentARR > 0 {
		cp.TargetRevenue = pitch.CurrentARR
	}
	if len(cp.Multiples) > 0 {
		return &cp, nil
	}
	key := comps.Key{
		Sector: firstNonEmpty(cp.Sector, pitch.Sector),
		Stage:  firstNonEmpty(cp.Stage, pitch.Stage),
		Geo:    firstNonEmpty(cp.Geo, pitch.Geo),
		Metric: cp.Metric,
	}.Normalize(s.cfg.DefaultGeo, s.cfg.DefaultMetric)
	if key.Sector == "" {
		return &cp, nil
	}
	sample, err := s.Comps(ctx, key)
	if err != nil {
		return nil, err
	}
	cp.Multiples = append([]float64(nil), sample.Multiples...)
	if cp.Metric == "" {
		cp.Metric = strings.ToUpper(sample.Metric)
	}
	return &cp, nil
}

// Comps returns the library sample for k, read through the cache.  A missing
// key is cached briefly as well.
func (s *Service) Comps(ctx context.Context, k comps.Key) (*comps.Sample, error) {
	k = k.Normalize(s.cfg.DefaultGeo, s.cfg.DefaultMetric)
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if s.comps == nil {
		return nil, comps.NotFound(k)
	}
	var sample comps.Sample
	err := s.cache.GetOrSet(ctx, cacheKeyPrefixComps+k.String(), &sample, s.cfg.CompsCacheTTL, func(ctx context.Context) (interface{}, error) {
		got, err := s.comps.Get(ctx, k)
		if errors.IsCode(err, errors.ErrCodeCompsNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return got, nil
	})
	if err == redis.ErrCacheMiss {
		return nil, comps.NotFound(k)
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// ListComps lists library samples for sector ("" for all).  Listings go
// straight to the repository.
func (s *Service) ListComps(ctx context.Context, sector string) ([]*comps.Sample, error) {
	if s.comps == nil {
		return []*comps.Sample{}, nil
	}
	return s.comps.List(ctx, strings.ToLower(strings.TrimSpace(sector)))
}

// ListRuns returns the persisted valuation runs of a pitch, newest first.
func (s *Service) ListRuns(ctx context.Context, rc RequestContext, limit, offset int) ([]*run.Run, error) {
	if rc.PitchID == "" {
		return nil, errors.InvalidParam("pitch_id is required")
	}
	return s.history.List(ctx, run.Filter{
		OrgID:   rc.OrgID,
		PitchID: rc.PitchID,
		Kind:    run.KindValuation,
		Limit:   limit,
		Offset:  offset,
	})
}

// Submit queues req as a valuation.requested job.  Unlike completion events,
// a failed publish fails the call: the job would otherwise be lost.
func (s *Service) Submit(ctx context.Context, rc RequestContext, req *ValuateRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "asynchronous valuation is not enabled")
	}
	scope := rc.Scope()
	if scope.PitchID == "" {
		scope.PitchID = req.PitchID
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode valuation job")
	}
	job := &Job{JobID: uuid.New().String(), PitchID: scope.PitchID, Status: "queued", SubmittedAt: time.Now().UTC()}
	err = s.jobs.PublishEvent(ctx, kafka.TopicValuationRequested, kafka.EventValuationRequested, scope.PitchID, kafka.ValuationRequestedPayload{
		JobID:       job.JobID,
		Scope:       scope,
		Request:     raw,
		RequestedAt: job.SubmittedAt,
	})
	prometheus.RecordEventPublished(s.metrics, kafka.TopicValuationRequested, err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueue, "queue valuation job").WithDetailf("job_id=%s", job.JobID)
	}
	s.logger.Info("Valuation job queued", logging.String("job_id", job.JobID), logging.String("pitch_id", scope.PitchID))
	return job, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func failed(m domain.Method, err error) domain.Outcome {
	ae, ok := errors.AsAppError(err)
	if !ok {
		ae = errors.Wrap(err, errors.ErrCodeValuationFailed, "valuation failed")
	}
	return domain.Outcome{Method: m, Err: &domain.OutcomeError{Code: ae.Code, Message: ae.Message, Detail: ae.Detail}}
}

func outcomeErr(o domain.Outcome) error {
	if o.OK() {
		return nil
	}
	return errors.New(o.Err.Code, o.Err.Message)
}

func summarize(c domain.ConsensusBand) string {
	total := c.Succeeded + c.Failed
	if c.Succeeded == 0 {
		return fmt.Sprintf("0/%d methods succeeded", total)
	}
	return fmt.Sprintf("%d/%d methods, consensus %s to %s (base %s)",
		c.Succeeded, total, money.Dollars(c.Low), money.Dollars(c.High), money.Dollars(c.Base))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
