package valuation

import (
	"fmt"
	"sort"

	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// Scorecard multiple bounds.
const (
	MinScorecardMultiple = 0.5
	MaxScorecardMultiple = 10.0

	// NeutralScore is used for a weighted category the caller did not score.
	NeutralScore = 5.0
)

// DefaultScorecardWeights are applied when a ScorecardInput carries no weights.
var DefaultScorecardWeights = map[string]float64{
	"team":          25,
	"market":        25,
	"product":       15,
	"traction":      15,
	"competition":   10,
	"defensibility": 5,
	"gtm":           5,
}

// ScorecardInput holds per-category scores (0–10) and weights.  Weights are
// relative: they are normalised by their sum.
type ScorecardInput struct {
	Scores        map[string]float64 `json:"scores"`
	Weights       map[string]float64 `json:"weights,omitempty"`
	ComparableARR float64            `json:"comparable_arr"`
	Spread        Spread             `json:"spread,omitempty"`
}

// Scorecard maps the weighted category score to an ARR multiple:
//
//	weighted = Σ(score_i × weight_i) / Σ weight_i
//	multiple = clamp(0.5 + weighted/10 × 9.5, 0.5, 10)
//	base     = multiple × comparable_arr
func Scorecard(in *ScorecardInput) (*Result, error) {
	if in == nil {
		return nil, errors.InvalidInput("scorecard input is nil")
	}
	spread, err := in.Spread.resolve(DefaultScorecardSpread)
	if err != nil {
		return nil, err
	}
	if in.ComparableARR < 0 || !finite(in.ComparableARR) {
		return nil, errors.InvalidInput("comparable_arr must be a non-negative number").WithDetailf("comparable_arr=%g", in.ComparableARR)
	}

	weights := in.Weights
	if len(weights) == 0 {
		weights = DefaultScorecardWeights
	}
	for name, s := range in.Scores {
		if s < 0 || s > 10 || !finite(s) {
			return nil, errors.InvalidInput("scores must be within [0, 10]").WithDetailf("score[%s]=%g", name, s)
		}
		if _, weighted := weights[name]; !weighted {
			return nil, errors.InvalidInput("score has no matching weight").WithDetailf("category=%s", name)
		}
	}

	// Fixed iteration order keeps floating-point sums bit-identical across calls.
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var totalWeight, totalScore float64
	for _, name := range names {
		w := weights[name]
		if w < 0 || !finite(w) {
			return nil, errors.InvalidInput("weights must not be negative").WithDetailf("weight[%s]=%g", name, w)
		}
		s, ok := in.Scores[name]
		if !ok {
			s = NeutralScore
		}
		totalWeight += w
		totalScore += s * w
	}
	if totalWeight == 0 {
		return nil, errors.InvalidInput("at least one weight must be positive")
	}

	weighted := totalScore / totalWeight
	multiple := clamp(MinScorecardMultiple+(weighted/10)*9.5, MinScorecardMultiple, MaxScorecardMultiple)
	base := multiple * in.ComparableARR

	notes := fmt.Sprintf("Scorecard valuation based on %.1f/10 score with %s ARR multiple on %s ARR",
		weighted, money.Multiple(multiple), money.Dollars(in.ComparableARR))

	return newResult(MethodScorecard, base*spread.Low, base, base*spread.High, notes, map[string]interface{}{
		"weighted_score": weighted,
		"arr_multiple":   multiple,
		"comparable_arr": in.ComparableARR,
		"total_weight":   totalWeight,
	})
}
