package valuation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/pkg/errors"
)

func mixedBatch() []Request {
	return []Request{
		{MethodName: "berkus", Inputs: json.RawMessage(`{"sound_idea": true, "prototype": true, "quality_team": true, "strategic_relationships": true, "product_rollout": true}`)},
		{MethodName: "vc_method", Inputs: json.RawMessage(`{"target_exit_value": 50000000, "required_return_multiple": 0}`)},
		{MethodName: "comps", Inputs: json.RawMessage(`{"multiples": [12], "target_revenue": 1000000}`)},
		{MethodName: "dcf", Inputs: json.RawMessage(`{}`)},
		{Input: &ScorecardInput{ComparableARR: 1_000_000}},
	}
}

func TestAggregator_PartialFailurePreservesOrder(t *testing.T) {
	out := NewAggregator().Run(mixedBatch())
	require.Len(t, out, 5)

	assert.Equal(t, MethodBerkus, out[0].Method)
	assert.True(t, out[0].OK())
	assert.InDelta(t, 2_500_000, out[0].Result.Base, 1e-6)

	assert.Equal(t, MethodVC, out[1].Method)
	require.False(t, out[1].OK())
	assert.Equal(t, errors.ErrCodeInvalidInput, out[1].Err.Code)

	assert.Equal(t, MethodComps, out[2].Method)
	require.False(t, out[2].OK())
	assert.Equal(t, errors.ErrCodeInsufficientData, out[2].Err.Code)
	assert.Equal(t, "sample_size=1", out[2].Err.Detail)

	assert.Equal(t, Method("dcf"), out[3].Method)
	assert.Equal(t, errors.ErrCodeUnknownMethod, out[3].Err.Code)

	assert.Equal(t, MethodScorecard, out[4].Method)
	assert.True(t, out[4].OK())
}

func TestAggregator_EmptyBatch(t *testing.T) {
	out := NewAggregator().Run(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestOutcome_JSONRoundTrip(t *testing.T) {
	out := NewAggregator().Run(mixedBatch())
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var generic []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	require.Len(t, generic, 5)
	assert.Equal(t, "berkus", generic[0]["method"])
	assert.Contains(t, generic[0], "result_base")
	assert.NotContains(t, generic[0], "error")
	errBody := generic[2]["error"].(map[string]interface{})
	assert.Equal(t, "CALC_002", errBody["code"])

	var back []Outcome
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 5)
	assert.True(t, back[0].OK())
	assert.InDelta(t, out[0].Result.High, back[0].Result.High, 1e-9)
	assert.False(t, back[3].OK())
	assert.Equal(t, errors.ErrCodeUnknownMethod, back[3].Err.Code)
}

func TestConsensus(t *testing.T) {
	out := NewAggregator().Run(mixedBatch())
	band := Consensus(out)

	assert.Equal(t, 2, band.Succeeded)
	assert.Equal(t, 3, band.Failed)
	assert.Equal(t, []Method{MethodBerkus, MethodScorecard}, band.Methods)
	// berkus 1.75M/2.5M/3.25M, scorecard 3.675M/5.25M/6.825M
	assert.InDelta(t, 1_750_000, band.Low, 1e-6)
	assert.InDelta(t, 3_875_000, band.Base, 1e-6)
	assert.InDelta(t, 6_825_000, band.High, 1e-6)
}

func TestConsensus_NoSuccesses(t *testing.T) {
	band := Consensus([]Outcome{{Method: MethodComps, Err: &OutcomeError{Code: errors.ErrCodeInsufficientData}}})
	assert.Zero(t, band.Base)
	assert.Empty(t, band.Methods)
	assert.Equal(t, 1, band.Failed)
}
