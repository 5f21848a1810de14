package waterfall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/internal/domain/captable"
	"github.com/turtacn/DealScope/pkg/errors"
)

func TestDefaultScenarios(t *testing.T) {
	sc := DefaultScenarios(6_000_000)
	require.Len(t, sc, 4)

	names := []string{"Low Exit", "Base Case", "High Exit", "Home Run"}
	values := []float64{3_000_000, 6_000_000, 12_000_000, 30_000_000}
	for i := range sc {
		assert.Equal(t, names[i], sc[i].Name)
		assert.InDelta(t, values[i], sc[i].ExitValue, 1e-9)
	}
}

func TestFromSnapshot_SeedRoundWaterfall(t *testing.T) {
	pre := captable.NewTable(captable.Entry{Holder: "Founders", HolderType: captable.HolderFounder, Shares: 8_000_000})
	snap, err := captable.Simulate(pre, captable.Terms{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000})
	require.NoError(t, err)

	entries, err := FromSnapshot(snap, PreferenceTerms{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, CommonClass, entries[0].Class)
	assert.Equal(t, "Preferred", entries[1].Class)
	assert.InDelta(t, 1_000_000, entries[1].Invested, 1e-6)
	assert.Equal(t, 1.0, entries[1].PreferenceMultiple)
	assert.Equal(t, 1, entries[1].Seniority)

	results, err := Distribute(entries, DefaultScenarios(snap.Summary.PostMoney))
	require.NoError(t, err)
	require.Len(t, results, 4)

	want := []struct {
		investor  float64
		founders  float64
		converted bool
	}{
		{1_000_000, 2_000_000, false},
		{1_000_000, 5_000_000, false},
		{2_000_000, 10_000_000, true},
		{5_000_000, 25_000_000, true},
	}
	for i, w := range want {
		r := results[i]
		assert.InDelta(t, w.investor, r.Payouts[1].ActualPayout, 1e-6, r.Scenario)
		assert.InDelta(t, w.founders, r.Payouts[0].ActualPayout, 1e-6, r.Scenario)
		assert.Equal(t, w.converted, r.Payouts[1].Converted, r.Scenario)
		assert.InDelta(t, r.ExitValue/1_000_000, r.Multiple, 1e-9)
	}
}

func TestFromSnapshot_Failures(t *testing.T) {
	_, err := FromSnapshot(nil, DefaultPreferenceTerms())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	snap, err := captable.Simulate(captable.DefaultPreTable(), captable.Terms{InvestmentAmount: 1, PreMoneyValuation: 1})
	require.NoError(t, err)
	_, err = FromSnapshot(snap, PreferenceTerms{Multiple: -1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
