// Package captable orchestrates round simulations, ownership-impact studies
// and liquidation waterfalls, recording each as a run.
package captable

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/DealScope/internal/application/history"
	domain "github.com/turtacn/DealScope/internal/domain/captable"
	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/domain/waterfall"
	"github.com/turtacn/DealScope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// MaxScenarios bounds impact and waterfall scenario lists.
const MaxScenarios = 50

// ── DTOs ─────────────────────────────────────────────────────────────────────

// RequestContext names who a call runs for.
type RequestContext struct {
	OrgID   string
	UserID  string
	PitchID string
}

func (rc RequestContext) scope(bodyPitch string) (run.Scope, error) {
	s := run.Scope{OrgID: rc.OrgID, UserID: rc.UserID, PitchID: rc.PitchID}
	switch {
	case s.PitchID == "":
		s.PitchID = bodyPitch
	case bodyPitch != "" && bodyPitch != s.PitchID:
		return s, errors.InvalidParam("pitch_id does not match the request context").
			WithDetailf("context=%q body=%q", s.PitchID, bodyPitch)
	}
	return s, nil
}

// SimulateRequest is a priced round over an optional pre-investment table.
// An absent table means the default founders-and-pool table.
type SimulateRequest struct {
	PitchID  string        `json:"pitch_id,omitempty"`
	PreTable *domain.Table `json:"pre_table,omitempty"`
	domain.Terms
}

// SimulateResponse is the snapshot with its derived metrics.
type SimulateResponse struct {
	PitchID string `json:"pitch_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	*domain.Snapshot
	Metrics *domain.Metrics `json:"metrics"`
}

// ImpactRequest evaluates several rounds against one table.  A nil
// OptionPoolTargetPct uses the impact default.
type ImpactRequest struct {
	PitchID             string                 `json:"pitch_id,omitempty"`
	PreTable            *domain.Table          `json:"pre_table,omitempty"`
	Scenarios           []domain.RoundScenario `json:"scenarios"`
	OptionPoolTargetPct *float64               `json:"option_pool_target_pct,omitempty"`
}

// ImpactResponse lists one result per scenario, in request order.
type ImpactResponse struct {
	PitchID string                `json:"pitch_id,omitempty"`
	RunID   string                `json:"run_id,omitempty"`
	Results []domain.ImpactResult `json:"results"`
}

// WaterfallRequest distributes exits over a classed post-investment table.
// When PostTable is empty the table is derived from Round with Terms.
// Without Scenarios the default exits are built from PostMoney, or from
// the simulated round's post-money.
type WaterfallRequest struct {
	PitchID   string                    `json:"pitch_id,omitempty"`
	PostTable []waterfall.ClassedEntry  `json:"post_table,omitempty"`
	Round     *SimulateRequest          `json:"round,omitempty"`
	Terms     waterfall.PreferenceTerms `json:"preference_terms,omitempty"`
	PostMoney float64                   `json:"post_money,omitempty"`
	Scenarios []waterfall.ExitScenario  `json:"scenarios,omitempty"`
}

// WaterfallResponse holds one result per scenario.
type WaterfallResponse struct {
	PitchID string             `json:"pitch_id,omitempty"`
	RunID   string             `json:"run_id,omitempty"`
	Results []waterfall.Result `json:"results"`
}

// ── service ──────────────────────────────────────────────────────────────────

// Deps are the collaborators of Service.  History is required.
type Deps struct {
	History  *history.Service
	Notifier *history.Notifier
	Metrics  *prometheus.AppMetrics
	Logger   logging.Logger
}

// Service runs cap-table computations.
type Service struct {
	history  *history.Service
	notifier *history.Notifier
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewService builds a Service from d.
func NewService(d Deps) (*Service, error) {
	if d.History == nil {
		return nil, errors.Internal("captable service requires a run history")
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
	return &Service{history: d.History, notifier: d.Notifier, metrics: d.Metrics, logger: d.Logger.Named("captable")}, nil
}

// Simulate applies a round and derives its metrics.
func (s *Service) Simulate(ctx context.Context, rc RequestContext, req *SimulateRequest) (*SimulateResponse, error) {
	if req == nil {
		return nil, errors.InvalidInput("simulate request is required")
	}
	scope, err := rc.scope(req.PitchID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := simulate(req)
	prometheus.RecordCapTable(s.metrics, "simulate", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	resp.PitchID = scope.PitchID

	rec, err := s.history.Record(ctx, run.KindCapTable, scope, req, resp, resp.Snapshot.Describe())
	if err != nil {
		return nil, err
	}
	resp.RunID = rec.ID.String()

	sum := resp.Snapshot.Summary
	s.notifier.Notify(ctx, kafka.TopicCapTableSimulated, kafka.EventCapTableSimulated, scope.PitchID, kafka.CapTableSimulatedPayload{
		RunID:            resp.RunID,
		Scope:            scope,
		Investment:       sum.InvestmentAmount,
		PreMoney:         sum.PreMoney,
		PostMoney:        sum.PostMoney,
		PricePerShare:    sum.PricePerShare,
		TotalShares:      float64(sum.TotalSharesAfter),
		FounderOwnership: founderOwnership(resp.Snapshot.PostInvestment),
		SimulatedAt:      time.Now().UTC(),
	})
	for _, w := range resp.Snapshot.Warnings {
		s.logger.Warn("Cap table warning", logging.String("run_id", resp.RunID), logging.String("warning", w))
	}
	s.logger.Info("Round simulated", logging.String("run_id", resp.RunID), logging.String("pitch_id", scope.PitchID))
	return resp, nil
}

func simulate(req *SimulateRequest) (*SimulateResponse, error) {
	pre := req.PreTable
	if pre.Len() == 0 {
		pre = domain.DefaultPreTable()
	}
	snap, err := domain.Simulate(pre, req.Terms)
	if err != nil {
		return nil, err
	}
	m, err := domain.DeriveMetrics(snap)
	if err != nil {
		return nil, err
	}
	return &SimulateResponse{Snapshot: snap, Metrics: m}, nil
}

// Impact compares founder ownership across candidate rounds.
func (s *Service) Impact(ctx context.Context, rc RequestContext, req *ImpactRequest) (*ImpactResponse, error) {
	if req == nil {
		return nil, errors.InvalidInput("impact request is required")
	}
	if len(req.Scenarios) > MaxScenarios {
		return nil, errors.InvalidInput(fmt.Sprintf("at most %d scenarios", MaxScenarios)).WithDetailf("scenarios=%d", len(req.Scenarios))
	}
	scope, err := rc.scope(req.PitchID)
	if err != nil {
		return nil, err
	}
	pct := -1.0
	if req.OptionPoolTargetPct != nil {
		pct = *req.OptionPoolTargetPct
	}

	start := time.Now()
	results, err := domain.Impact(req.PreTable, req.Scenarios, pct)
	prometheus.RecordCapTable(s.metrics, "impact", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	resp := &ImpactResponse{PitchID: scope.PitchID, Results: results}
	rec, err := s.history.Record(ctx, run.KindCapTable, scope, req, resp, fmt.Sprintf("ownership impact over %d scenarios", len(results)))
	if err != nil {
		return nil, err
	}
	resp.RunID = rec.ID.String()
	return resp, nil
}

// Waterfall distributes every exit scenario.
func (s *Service) Waterfall(ctx context.Context, rc RequestContext, req *WaterfallRequest) (*WaterfallResponse, error) {
	if req == nil {
		return nil, errors.InvalidInput("waterfall request is required")
	}
	if len(req.Scenarios) > MaxScenarios {
		return nil, errors.InvalidInput(fmt.Sprintf("at most %d scenarios", MaxScenarios)).WithDetailf("scenarios=%d", len(req.Scenarios))
	}
	scope, err := rc.scope(req.PitchID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := distribute(req)
	prometheus.RecordWaterfall(s.metrics, len(results), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	resp := &WaterfallResponse{PitchID: scope.PitchID, Results: results}
	rec, err := s.history.Record(ctx, run.KindWaterfall, scope, req, resp, describeWaterfall(results))
	if err != nil {
		return nil, err
	}
	resp.RunID = rec.ID.String()

	s.notifier.Notify(ctx, kafka.TopicWaterfallComputed, kafka.EventWaterfallComputed, scope.PitchID, kafka.WaterfallComputedPayload{
		RunID:      resp.RunID,
		Scope:      scope,
		Scenarios:  len(results),
		ComputedAt: time.Now().UTC(),
	})
	return resp, nil
}

func distribute(req *WaterfallRequest) ([]waterfall.Result, error) {
	entries := req.PostTable
	postMoney := req.PostMoney
	if len(entries) == 0 {
		if req.Round == nil {
			return nil, errors.InvalidInput("post_table or round is required")
		}
		sim, err := simulate(req.Round)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "simulate round for waterfall")
		}
		if entries, err = waterfall.FromSnapshot(sim.Snapshot, req.Terms); err != nil {
			return nil, err
		}
		if postMoney == 0 {
			postMoney = sim.Snapshot.Summary.PostMoney
		}
	}

	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		if !(postMoney > 0) {
			return nil, errors.InvalidInput("scenarios or a positive post_money is required")
		}
		scenarios = waterfall.DefaultScenarios(postMoney)
	}
	return waterfall.Distribute(entries, scenarios)
}

// ListRuns returns cap-table and waterfall runs of a pitch, newest first.
func (s *Service) ListRuns(ctx context.Context, rc RequestContext, kind run.Kind, limit, offset int) ([]*run.Run, error) {
	if rc.PitchID == "" {
		return nil, errors.InvalidParam("pitch_id is required")
	}
	if kind == run.KindValuation {
		return nil, errors.InvalidParam("valuation runs are listed by the valuation service")
	}
	return s.history.List(ctx, run.Filter{OrgID: rc.OrgID, PitchID: rc.PitchID, Kind: kind, Limit: limit, Offset: offset})
}

func founderOwnership(t *domain.Table) float64 {
	total := 0.0
	for _, e := range t.Entries() {
		if e.HolderType == domain.HolderFounder {
			total += e.OwnershipFraction
		}
	}
	return total
}

func describeWaterfall(results []waterfall.Result) string {
	if len(results) == 0 {
		return "no scenarios"
	}
	lo, hi := results[0].ExitValue, results[0].ExitValue
	for _, r := range results[1:] {
		if r.ExitValue < lo {
			lo = r.ExitValue
		}
		if r.ExitValue > hi {
			hi = r.ExitValue
		}
	}
	return fmt.Sprintf("%d exit scenarios from %s to %s", len(results), money.Dollars(lo), money.Dollars(hi))
}
