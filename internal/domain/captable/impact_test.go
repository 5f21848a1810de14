package captable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/pkg/errors"
)

func TestImpact_DefaultTable(t *testing.T) {
	res, err := Impact(nil, []RoundScenario{
		{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000},
		{Name: "Series A", InvestmentAmount: 4_000_000, PreMoneyValuation: 16_000_000},
	}, 0)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "$1,000,000 investment", res[0].ScenarioName)
	assert.InDelta(t, 6_000_000, res[0].PostMoneyValuation, 1e-9)
	// 10M shares priced at 0.5, investor gets 2M of 12M.
	assert.InDelta(t, 8.0/12.0, res[0].FounderOwnershipAfter, 1e-9)
	assert.InDelta(t, 0.8-8.0/12.0, res[0].FounderDilution, 1e-9)
	assert.InDelta(t, 1.0/6.0, res[0].NewInvestorOwnership, 1e-9)

	assert.Equal(t, "Series A", res[1].ScenarioName)
	assert.InDelta(t, 0.2, res[1].NewInvestorOwnership, 1e-9)
	assert.InDelta(t, 0.64, res[1].FounderOwnershipAfter, 1e-9)
}

func TestImpact_NegativePctUsesDefault(t *testing.T) {
	explicit, err := Impact(foundersOnly(), []RoundScenario{{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000}}, DefaultImpactPoolPct)
	require.NoError(t, err)
	defaulted, err := Impact(foundersOnly(), []RoundScenario{{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000}}, -1)
	require.NoError(t, err)
	assert.Equal(t, explicit, defaulted)
}

func TestImpact_FailingScenarioFailsCall(t *testing.T) {
	res, err := Impact(DefaultPreTable(), []RoundScenario{
		{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000},
		{Name: "broken", InvestmentAmount: 0, PreMoneyValuation: 5_000_000},
	}, 0)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
	assert.Contains(t, err.Error(), `scenario[1]="broken"`)

	_, err = Impact(DefaultPreTable(), nil, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
