package captable

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/DealScope/internal/application/history"
	domain "github.com/turtacn/DealScope/internal/domain/captable"
	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/domain/waterfall"
	"github.com/turtacn/DealScope/internal/infrastructure/database/sqlite"
	"github.com/turtacn/DealScope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/testutil"
	"github.com/turtacn/DealScope/pkg/errors"
)

type ServiceTestSuite struct {
	suite.Suite
	store *sqlite.HistoryStore
	pub   *testutil.MockEventPublisher
	log   *testutil.MockLogger
	svc   *Service
	rc    RequestContext
}

func (s *ServiceTestSuite) SetupTest() {
	store, err := sqlite.Open(":memory:", logging.NewNopLogger())
	s.Require().NoError(err)
	s.store = store
	s.pub = &testutil.MockEventPublisher{}
	s.log = testutil.NewMockLogger()

	s.svc, err = NewService(Deps{
		History:  history.NewService(store, nil, 0, nil, s.log),
		Notifier: history.NewNotifier(s.pub, nil, s.log),
		Logger:   s.log,
	})
	s.Require().NoError(err)
	s.rc = RequestContext{OrgID: "org-1", UserID: "u-1", PitchID: "pitch-1"}
}

func (s *ServiceTestSuite) TearDownTest() {
	s.store.Close()
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func foundersOnly() *domain.Table {
	return domain.NewTable(domain.Entry{Holder: "Founders", HolderType: domain.HolderFounder, Shares: 8_000_000, Class: "Common"})
}

func (s *ServiceTestSuite) TestSimulate_SeedRound() {
	s.pub.On("PublishEvent", mock.Anything, kafka.TopicCapTableSimulated, kafka.EventCapTableSimulated, "pitch-1",
		mock.MatchedBy(func(p kafka.CapTableSimulatedPayload) bool {
			return p.RunID != "" && p.PricePerShare == 0.625 && p.FounderOwnership > 0.83 && p.FounderOwnership < 0.84
		})).Return(nil).Once()

	resp, err := s.svc.Simulate(context.Background(), s.rc, &SimulateRequest{
		PreTable: foundersOnly(),
		Terms:    domain.Terms{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000},
	})
	s.Require().NoError(err)

	s.InDelta(0.625, resp.Summary.PricePerShare, 1e-12)
	s.Equal(int64(1_600_000), resp.Summary.NewSharesIssued)
	s.Equal(2, resp.PostInvestment.Len())
	s.InDelta(0.8333333, resp.Metrics.OwnershipDistribution[domain.HolderFounder], 1e-6)
	s.InDelta(0.1666667, resp.Metrics.OwnershipDistribution[domain.HolderInvestor], 1e-6)
	s.NotEmpty(resp.RunID)
	s.Equal("pitch-1", resp.PitchID)
	s.pub.AssertExpectations(s.T())

	runs, err := s.store.List(context.Background(), run.Filter{PitchID: "pitch-1", Kind: run.KindCapTable})
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Contains(runs[0].Summary, "to investor")

	var stored SimulateResponse
	s.Require().NoError(runs[0].DecodeResult(&stored))
	s.Require().NotNil(stored.Snapshot)
	s.Equal(int64(9_600_000), stored.Summary.TotalSharesAfter)
	s.Equal(2, stored.PostInvestment.Len())
}

func (s *ServiceTestSuite) TestSimulate_DefaultTable() {
	s.pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := s.svc.Simulate(context.Background(), RequestContext{}, &SimulateRequest{
		PitchID: "body-pitch",
		Terms:   domain.Terms{InvestmentAmount: 2_000_000, PreMoneyValuation: 8_000_000, OptionPoolTargetPct: 0.15},
	})
	s.Require().NoError(err)
	s.Equal("body-pitch", resp.PitchID)
	s.Equal(int64(10_000_000), resp.Summary.TotalSharesBefore)
	s.InDelta(1.0, resp.PostInvestment.OwnershipSum(), domain.OwnershipTolerance)
}

func (s *ServiceTestSuite) TestSimulate_InvalidTermsAreNotPersisted() {
	_, err := s.svc.Simulate(context.Background(), s.rc, &SimulateRequest{Terms: domain.Terms{PreMoneyValuation: 1}})
	s.True(errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = s.svc.Simulate(context.Background(), s.rc, nil)
	s.Error(err)

	_, err = s.svc.Simulate(context.Background(), s.rc, &SimulateRequest{PitchID: "other"})
	s.True(errors.IsCode(err, errors.ErrCodeBadRequest))

	runs, err := s.store.List(context.Background(), run.Filter{})
	s.Require().NoError(err)
	s.Empty(runs)
	s.pub.AssertNotCalled(s.T(), "PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestImpact() {
	resp, err := s.svc.Impact(context.Background(), s.rc, &ImpactRequest{
		Scenarios: []domain.RoundScenario{
			{Name: "Small", InvestmentAmount: 1_000_000, PreMoneyValuation: 4_000_000},
			{InvestmentAmount: 3_000_000, PreMoneyValuation: 9_000_000},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 2)
	s.Equal("Small", resp.Results[0].ScenarioName)
	s.Contains(resp.Results[1].ScenarioName, "investment")
	s.Less(resp.Results[0].FounderOwnershipAfter, 0.8)
	s.NotEmpty(resp.RunID)

	zero := 0.0
	noPool, err := s.svc.Impact(context.Background(), s.rc, &ImpactRequest{
		PreTable:            foundersOnly(),
		Scenarios:           []domain.RoundScenario{{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000}},
		OptionPoolTargetPct: &zero,
	})
	s.Require().NoError(err)
	s.InDelta(0.8333333, noPool.Results[0].FounderOwnershipAfter, 1e-6)

	_, err = s.svc.Impact(context.Background(), s.rc, &ImpactRequest{})
	s.True(errors.IsValidation(err))

	_, err = s.svc.Impact(context.Background(), s.rc, &ImpactRequest{Scenarios: make([]domain.RoundScenario, MaxScenarios+1)})
	s.True(errors.IsValidation(err))
}

func (s *ServiceTestSuite) TestWaterfall_ExplicitTable() {
	s.pub.On("PublishEvent", mock.Anything, kafka.TopicWaterfallComputed, kafka.EventWaterfallComputed, "pitch-1",
		mock.AnythingOfType("kafka.WaterfallComputedPayload")).Return(nil).Once()

	resp, err := s.svc.Waterfall(context.Background(), s.rc, &WaterfallRequest{
		PostTable: []waterfall.ClassedEntry{
			{Holder: "Founders", Class: "Common", Shares: 8_000_000},
			{Holder: "Seed Fund", Class: "Series Seed", Shares: 1_600_000, Invested: 1_000_000, PreferenceMultiple: 1, Seniority: 1},
		},
		Scenarios: []waterfall.ExitScenario{{Name: "Fire sale", ExitValue: 500_000}},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 1)
	s.InDelta(500_000, resp.Results[0].ClassTotal("Series Seed"), 1e-6)
	s.InDelta(0, resp.Results[0].ClassTotal("Common"), 1e-6)
	s.NotEmpty(resp.RunID)
	s.pub.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestWaterfall_FromRoundWithDefaultScenarios() {
	s.pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := s.svc.Waterfall(context.Background(), s.rc, &WaterfallRequest{
		Round: &SimulateRequest{
			PreTable: foundersOnly(),
			Terms:    domain.Terms{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 4)
	for i, r := range resp.Results {
		s.InDelta(r.ExitValue, r.Total(), r.ExitValue*waterfall.SumTolerance+1e-9, "scenario %d", i)
	}
	s.InDelta(3_000_000, resp.Results[0].ExitValue, 1e-6)
	s.InDelta(30_000_000, resp.Results[3].ExitValue, 1e-6)
}

func (s *ServiceTestSuite) TestWaterfall_Errors() {
	ctx := context.Background()

	_, err := s.svc.Waterfall(ctx, s.rc, &WaterfallRequest{})
	s.True(errors.IsValidation(err))

	_, err = s.svc.Waterfall(ctx, s.rc, &WaterfallRequest{
		PostTable: []waterfall.ClassedEntry{{Holder: "A", Shares: 1}},
	})
	s.True(errors.IsValidation(err), "no scenarios and no post_money")

	_, err = s.svc.Waterfall(ctx, s.rc, &WaterfallRequest{
		Round: &SimulateRequest{Terms: domain.Terms{InvestmentAmount: -1, PreMoneyValuation: 1}},
	})
	s.True(errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func (s *ServiceTestSuite) TestListRuns() {
	s.pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	_, err := s.svc.Simulate(ctx, s.rc, &SimulateRequest{Terms: domain.Terms{InvestmentAmount: 1, PreMoneyValuation: 10}})
	s.Require().NoError(err)

	runs, err := s.svc.ListRuns(ctx, s.rc, "", 0, 0)
	s.Require().NoError(err)
	s.Len(runs, 1)

	_, err = s.svc.ListRuns(ctx, s.rc, run.KindValuation, 0, 0)
	s.Error(err)
	_, err = s.svc.ListRuns(ctx, RequestContext{}, "", 0, 0)
	s.Error(err)
}

func TestSimulateRequest_JSONShape(t *testing.T) {
	var req SimulateRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"pitch_id": "p1",
		"pre_table": [{"holder": "Founders", "holder_type": "founder", "shares": 8000000}],
		"investment_amount": 1000000,
		"pre_money_valuation": 5000000,
		"option_pool_target_pct": 0.1
	}`), &req))
	assert.Equal(t, "p1", req.PitchID)
	assert.Equal(t, 1, req.PreTable.Len())
	assert.Equal(t, 1_000_000.0, req.InvestmentAmount)
	assert.Equal(t, 0.1, req.OptionPoolTargetPct)

	resp, err := simulate(&req)
	require.NoError(t, err)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	for _, k := range []string{"pre_investment_table", "post_investment_table", "investment_summary", "metrics"} {
		assert.Contains(t, generic, k)
	}
}

func TestNewService_RequiresHistory(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}
