package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/pkg/errors"
)

func TestScorecard_DefaultWeightsNeutralScores(t *testing.T) {
	res, err := Scorecard(&ScorecardInput{ComparableARR: 1_000_000})
	require.NoError(t, err)

	assert.Equal(t, MethodScorecard, res.Method)
	assert.InDelta(t, 5.0, res.Diagnostics["weighted_score"], 1e-12)
	assert.InDelta(t, 5.25, res.Diagnostics["arr_multiple"], 1e-12)
	assert.InDelta(t, 5_250_000, res.Base, 1e-6)
	assert.InDelta(t, 3_675_000, res.Low, 1e-6)
	assert.InDelta(t, 6_825_000, res.High, 1e-6)
	assert.Contains(t, res.Notes, "5.0/10")
}

func TestScorecard_WeightsAreNormalised(t *testing.T) {
	res, err := Scorecard(&ScorecardInput{
		Scores:        map[string]float64{"team": 8, "market": 4},
		Weights:       map[string]float64{"team": 1, "market": 3},
		ComparableARR: 2_000_000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.Diagnostics["weighted_score"], 1e-12)
	assert.InDelta(t, 10_500_000, res.Base, 1e-6)
}

func TestScorecard_MultipleBounds(t *testing.T) {
	top := map[string]float64{}
	bottom := map[string]float64{}
	for k := range DefaultScorecardWeights {
		top[k] = 10
		bottom[k] = 0
	}

	hi, err := Scorecard(&ScorecardInput{Scores: top, ComparableARR: 1_000_000})
	require.NoError(t, err)
	assert.InDelta(t, MaxScorecardMultiple, hi.Diagnostics["arr_multiple"], 1e-12)
	assert.InDelta(t, 10_000_000, hi.Base, 1e-6)

	lo, err := Scorecard(&ScorecardInput{Scores: bottom, ComparableARR: 1_000_000})
	require.NoError(t, err)
	assert.InDelta(t, MinScorecardMultiple, lo.Diagnostics["arr_multiple"], 1e-12)
	assert.InDelta(t, 500_000, lo.Base, 1e-6)
}

func TestScorecard_PropertyBandAndMultiple(t *testing.T) {
	for score := 0.0; score <= 10.0; score += 0.5 {
		for _, arr := range []float64{0, 1, 250_000, 3_000_000} {
			res, err := Scorecard(&ScorecardInput{
				Scores:        map[string]float64{"team": score, "market": 10 - score},
				Weights:       map[string]float64{"team": 7, "market": 2},
				ComparableARR: arr,
			})
			require.NoError(t, err)
			m := res.Diagnostics["arr_multiple"].(float64)
			assert.GreaterOrEqual(t, m, MinScorecardMultiple)
			assert.LessOrEqual(t, m, MaxScorecardMultiple)
			assert.LessOrEqual(t, res.Low, res.Base)
			assert.LessOrEqual(t, res.Base, res.High)
			assert.GreaterOrEqual(t, res.Low, 0.0)
		}
	}
}

func TestScorecard_CustomSpread(t *testing.T) {
	res, err := Scorecard(&ScorecardInput{ComparableARR: 1_000_000, Spread: Spread{Low: 0.5, High: 2}})
	require.NoError(t, err)
	assert.InDelta(t, res.Base*0.5, res.Low, 1e-6)
	assert.InDelta(t, res.Base*2, res.High, 1e-6)
}

func TestScorecard_InvalidInputs(t *testing.T) {
	cases := map[string]*ScorecardInput{
		"negative weight": {
			Scores:  map[string]float64{"team": 5},
			Weights: map[string]float64{"team": -1, "market": 2},
		},
		"all weights zero": {
			Weights: map[string]float64{"team": 0, "market": 0},
		},
		"score above ten": {
			Scores: map[string]float64{"team": 11},
		},
		"score without weight": {
			Scores:  map[string]float64{"vibes": 9},
			Weights: map[string]float64{"team": 1},
		},
		"negative arr": {
			ComparableARR: -1,
		},
		"inverted spread": {
			Spread: Spread{Low: 1.2, High: 0.8},
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := Scorecard(in)
			assert.Nil(t, res)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput), "got %v", err)
		})
	}
}

func TestScorecard_DoesNotMutateInput(t *testing.T) {
	in := &ScorecardInput{Scores: map[string]float64{"team": 9}, ComparableARR: 1}
	_, err := Scorecard(in)
	require.NoError(t, err)
	assert.Len(t, in.Scores, 1)
	assert.Nil(t, in.Weights)
	assert.Len(t, DefaultScorecardWeights, 7)
}
