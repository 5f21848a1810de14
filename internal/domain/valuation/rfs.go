package valuation

import (
	"fmt"

	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// RFS rating bounds.
const (
	MinRiskRating = -2
	MaxRiskRating = 2
)

// StandardRiskFactors is the dollar adjustment per rating step for the
// twelve standard Risk Factor Summation factors.
var StandardRiskFactors = map[string]float64{
	"management":                   300_000,
	"stage_of_business":            250_000,
	"legislation_political_risk":   200_000,
	"manufacturing_risk":           200_000,
	"sales_marketing_risk":         200_000,
	"funding_capital_raising_risk": 250_000,
	"competition_risk":             200_000,
	"technology_risk":              300_000,
	"litigation_risk":              100_000,
	"international_risk":           150_000,
	"reputation_risk":              100_000,
	"exit_value_risk":              100_000,
}

// RiskFactor is one rated factor.  StepAmount overrides the standard table;
// it is required for factors outside that table.
type RiskFactor struct {
	Name       string  `json:"name"`
	Rating     int     `json:"rating"`
	StepAmount float64 `json:"step_amount,omitempty"`
}

// RFSInput holds the starting valuation and the rated factors.
type RFSInput struct {
	BaseValuation float64      `json:"base_valuation"`
	Factors       []RiskFactor `json:"risk_factors"`
	Spread        Spread       `json:"spread,omitempty"`
}

// RiskFactorSummation adds rating × step for every factor to the base
// valuation and floors the total at zero.
func RiskFactorSummation(in *RFSInput) (*Result, error) {
	if in == nil {
		return nil, errors.InvalidInput("rfs input is nil")
	}
	if in.BaseValuation < 0 || !finite(in.BaseValuation) {
		return nil, errors.InvalidInput("base_valuation must not be negative").WithDetailf("base_valuation=%g", in.BaseValuation)
	}
	spread, err := in.Spread.resolve(DefaultRFSSpread)
	if err != nil {
		return nil, err
	}

	applied := make([]map[string]interface{}, 0, len(in.Factors))
	seen := make(map[string]struct{}, len(in.Factors))
	total := 0.0
	for i, f := range in.Factors {
		if f.Rating < MinRiskRating || f.Rating > MaxRiskRating {
			return nil, errors.InvalidInput("risk ratings must be within [-2, 2]").WithDetailf("risk_factors[%d].rating=%d", i, f.Rating)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, errors.InvalidInput("risk factor rated twice").WithDetailf("name=%s", f.Name)
		}
		seen[f.Name] = struct{}{}

		step := f.StepAmount
		if step == 0 {
			std, ok := StandardRiskFactors[f.Name]
			if !ok {
				return nil, errors.InvalidInput("unknown risk factor requires step_amount").WithDetailf("name=%s", f.Name)
			}
			step = std
		}
		if step < 0 || !finite(step) {
			return nil, errors.InvalidInput("step_amount must not be negative").WithDetailf("name=%s step_amount=%g", f.Name, step)
		}
		adj := float64(f.Rating) * step
		total += adj
		applied = append(applied, map[string]interface{}{
			"name":       f.Name,
			"rating":     f.Rating,
			"step":       step,
			"adjustment": adj,
		})
	}

	final := in.BaseValuation + total
	floored := false
	if final < 0 {
		final = 0
		floored = true
	}

	notes := fmt.Sprintf("RFS method: %s base %s %s adjustments",
		money.Dollars(in.BaseValuation), sign(total), money.Dollars(abs(total)))
	if floored {
		notes += "; floored at $0"
	}

	return newResult(MethodRFS, final*spread.Low, final, final*spread.High, notes, map[string]interface{}{
		"base_valuation":   in.BaseValuation,
		"total_adjustment": total,
		"applied_factors":  applied,
	})
}

func sign(v float64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
