package valuation

import (
	"fmt"
	"math"

	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// VCMethodInput holds the venture-capital method parameters.  The exit value
// is either given directly or projected as exit_year_arr × exit_arr_multiple.
type VCMethodInput struct {
	TargetExitValue        float64 `json:"target_exit_value"`
	ExitYearARR            float64 `json:"exit_year_arr,omitempty"`
	ExitARRMultiple        float64 `json:"exit_arr_multiple,omitempty"`
	RequiredReturnMultiple float64 `json:"required_return_multiple"`
	TimeToExitYears        float64 `json:"time_to_exit_years"`
	ExpectedDilution       float64 `json:"expected_dilution"`
	InvestmentAmount       float64 `json:"investment_amount"`
	Spread                 Spread  `json:"spread,omitempty"`
}

// exitValue returns the explicit exit value or the ARR projection.
func (in *VCMethodInput) exitValue() float64 {
	if in.TargetExitValue > 0 {
		return in.TargetExitValue
	}
	return in.ExitYearARR * in.ExitARRMultiple
}

// vcPreMoney applies the method to one exit value:
//
//	post     = exit / required_multiple
//	pre      = post − investment
//	adjusted = pre × (1 − expected_dilution)
func vcPreMoney(exit float64, in *VCMethodInput) (post, pre, adjusted float64) {
	post = exit / in.RequiredReturnMultiple
	pre = post - in.InvestmentAmount
	adjusted = pre * (1 - in.ExpectedDilution)
	return post, pre, adjusted
}

// VCMethod values the company backwards from a target exit.  The base is the
// dilution-adjusted pre-money; low and high re-run the formula with the exit
// value scaled by the spread.  Negative pre-money results are floored at zero.
func VCMethod(in *VCMethodInput) (*Result, error) {
	if in == nil {
		return nil, errors.InvalidInput("vc_method input is nil")
	}
	if in.RequiredReturnMultiple <= 0 || !finite(in.RequiredReturnMultiple) {
		return nil, errors.InvalidInput("required_return_multiple must be > 0").WithDetailf("required_return_multiple=%g", in.RequiredReturnMultiple)
	}
	exit := in.exitValue()
	if exit <= 0 || !finite(exit) {
		return nil, errors.InvalidInput("target_exit_value (or exit_year_arr × exit_arr_multiple) must be > 0")
	}
	if in.TimeToExitYears < 0 || !finite(in.TimeToExitYears) {
		return nil, errors.InvalidInput("time_to_exit_years must not be negative").WithDetailf("time_to_exit_years=%g", in.TimeToExitYears)
	}
	if in.InvestmentAmount < 0 || !finite(in.InvestmentAmount) {
		return nil, errors.InvalidInput("investment_amount must not be negative").WithDetailf("investment_amount=%g", in.InvestmentAmount)
	}
	if in.ExpectedDilution < 0 || in.ExpectedDilution >= 1 || !finite(in.ExpectedDilution) {
		return nil, errors.InvalidInput("expected_dilution must be within [0, 1)").WithDetailf("expected_dilution=%g", in.ExpectedDilution)
	}
	spread, err := in.Spread.resolve(DefaultVCSpread)
	if err != nil {
		return nil, err
	}

	post, pre, adjusted := vcPreMoney(exit, in)
	_, _, low := vcPreMoney(exit*spread.Low, in)
	_, _, high := vcPreMoney(exit*spread.High, in)

	base := math.Max(0, adjusted)
	low = math.Max(0, low)
	high = math.Max(0, high)

	// Annualised return implied by the required multiple over the horizon.
	impliedIRR := 0.0
	if in.TimeToExitYears > 0 {
		impliedIRR = math.Pow(in.RequiredReturnMultiple, 1/in.TimeToExitYears) - 1
	}

	notes := fmt.Sprintf("VC method: %s exit at %s required return, %s expected dilution",
		money.Dollars(exit), money.Multiple(in.RequiredReturnMultiple), money.Percent(in.ExpectedDilution, 0))
	if adjusted < 0 {
		notes += "; investment exceeds implied post-money, pre-money floored at $0"
	}

	return newResult(MethodVC, low, base, high, notes, map[string]interface{}{
		"target_exit_value":        exit,
		"post_money":               post,
		"pre_money":                pre,
		"adjusted_pre_money":       adjusted,
		"required_return_multiple": in.RequiredReturnMultiple,
		"implied_irr":              impliedIRR,
	})
}
