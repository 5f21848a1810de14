package captable

import (
	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// DefaultImpactPoolPct is the option pool target used by Impact when the
// caller passes a negative pct.
const DefaultImpactPoolPct = 0.10

// RoundScenario is one candidate round evaluated by Impact.
type RoundScenario struct {
	Name              string  `json:"name,omitempty"`
	InvestmentAmount  float64 `json:"investment_amount"`
	PreMoneyValuation float64 `json:"pre_money_valuation"`
}

// ImpactResult reports founder ownership after one RoundScenario.
type ImpactResult struct {
	ScenarioName          string  `json:"scenario_name"`
	InvestmentAmount      float64 `json:"investment_amount"`
	PreMoneyValuation     float64 `json:"pre_money_valuation"`
	PostMoneyValuation    float64 `json:"post_money_valuation"`
	FounderOwnershipAfter float64 `json:"founder_ownership_after"`
	FounderDilution       float64 `json:"founder_dilution"`
	TotalDilution         float64 `json:"total_dilution"`
	NewInvestorOwnership  float64 `json:"new_investor_ownership"`
}

// Impact simulates each scenario independently against pre.  An empty pre
// table falls back to DefaultPreTable.  The first failing scenario fails the
// whole call.
func Impact(pre *Table, scenarios []RoundScenario, poolPct float64) ([]ImpactResult, error) {
	if len(scenarios) == 0 {
		return nil, errors.InvalidInput("at least one scenario is required")
	}
	if pre.Len() == 0 {
		pre = DefaultPreTable()
	}
	if poolPct < 0 {
		poolPct = DefaultImpactPoolPct
	}

	out := make([]ImpactResult, 0, len(scenarios))
	for i, sc := range scenarios {
		name := sc.Name
		if name == "" {
			name = money.Dollars(sc.InvestmentAmount) + " investment"
		}
		snap, err := Simulate(pre, Terms{
			InvestmentAmount:    sc.InvestmentAmount,
			PreMoneyValuation:   sc.PreMoneyValuation,
			OptionPoolTargetPct: poolPct,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "scenario failed").WithDetailf("scenario[%d]=%q", i, name)
		}
		m, err := DeriveMetrics(snap)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "scenario metrics failed").WithDetailf("scenario[%d]=%q", i, name)
		}
		out = append(out, ImpactResult{
			ScenarioName:          name,
			InvestmentAmount:      sc.InvestmentAmount,
			PreMoneyValuation:     sc.PreMoneyValuation,
			PostMoneyValuation:    snap.Summary.PostMoney,
			FounderOwnershipAfter: m.OwnershipDistribution[HolderFounder],
			FounderDilution:       m.DilutionAnalysis.FounderDilution,
			TotalDilution:         m.DilutionAnalysis.TotalDilution,
			NewInvestorOwnership:  snap.Summary.NewInvestorOwnership,
		})
	}
	return out, nil
}
