package captable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/pkg/errors"
)

func TestDeriveMetrics_SeedRound(t *testing.T) {
	snap, err := Simulate(foundersOnly(), Terms{InvestmentAmount: 1_000_000, PreMoneyValuation: 5_000_000})
	require.NoError(t, err)

	m, err := DeriveMetrics(snap)
	require.NoError(t, err)

	require.Len(t, m.OwnershipDistribution, 4)
	assert.InDelta(t, 5.0/6.0, m.OwnershipDistribution[HolderFounder], 1e-9)
	assert.InDelta(t, 1.0/6.0, m.OwnershipDistribution[HolderInvestor], 1e-9)
	assert.Zero(t, m.OwnershipDistribution[HolderOptionPool])
	assert.Zero(t, m.OwnershipDistribution[HolderOther])

	assert.InDelta(t, 1.0/6.0, m.DilutionAnalysis.FounderDilution, 1e-9)
	assert.InDelta(t, 1.0/6.0, m.DilutionAnalysis.TotalDilution, 1e-9)
	assert.InDelta(t, 1.0/6.0, m.DilutionAnalysis.AverageDilution, 1e-9)
	assert.Equal(t, 1, m.DilutionAnalysis.DilutedHolders)

	assert.InDelta(t, 0.625, m.ValuationMetrics.PreMoneyPerShare, 1e-12)
	assert.InDelta(t, 0.625, m.ValuationMetrics.PostMoneyPerShare, 1e-12)
	assert.InDelta(t, 0, m.ValuationMetrics.PriceIncrease, 1e-12)

	assert.Equal(t, int64(8_000_000), m.ShareMetrics.TotalSharesBefore)
	assert.Equal(t, int64(9_600_000), m.ShareMetrics.TotalSharesAfter)
	assert.Equal(t, int64(1_600_000), m.ShareMetrics.NewSharesIssued)
}

func TestDeriveMetrics_PoolShuffleLowersPostPrice(t *testing.T) {
	snap, err := Simulate(foundersOnly(), Terms{
		InvestmentAmount:    1_000_000,
		PreMoneyValuation:   5_000_000,
		OptionPoolTargetPct: 0.2,
	})
	require.NoError(t, err)

	m, err := DeriveMetrics(snap)
	require.NoError(t, err)

	// 5M / 8M before the top-up, 6M / 12M after the round.
	assert.InDelta(t, 0.625, m.ValuationMetrics.PreMoneyPerShare, 1e-12)
	assert.InDelta(t, 0.5, m.ValuationMetrics.PostMoneyPerShare, 1e-12)
	assert.InDelta(t, -0.2, m.ValuationMetrics.PriceIncrease, 1e-12)
	assert.InDelta(t, 1.0/6.0, m.OwnershipDistribution[HolderOptionPool], 1e-9)
	assert.Equal(t, int64(2_000_000), m.ShareMetrics.OptionPoolExpansion)

	sum := 0.0
	for _, v := range m.OwnershipDistribution {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, OwnershipTolerance)
}

func TestDeriveMetrics_PoolTopUpIsNotDilution(t *testing.T) {
	pre := NewTable(
		Entry{Holder: "Founders", HolderType: HolderFounder, Shares: 9_000_000},
		Entry{Holder: "Option Pool", HolderType: HolderOptionPool, Shares: 1_000_000},
	)
	snap, err := Simulate(pre, Terms{
		InvestmentAmount:    1_000_000,
		PreMoneyValuation:   5_000_000,
		OptionPoolTargetPct: 0.2,
	})
	require.NoError(t, err)

	m, err := DeriveMetrics(snap)
	require.NoError(t, err)

	// Founders go from 90% to 9M / 13.5M; the pool grows from 10% to 2.25M / 13.5M.
	da := m.DilutionAnalysis
	assert.InDelta(t, 0.9-2.0/3.0, da.FounderDilution, 1e-9)
	assert.InDelta(t, 0.9-2.0/3.0, da.TotalDilution, 1e-9)
	assert.InDelta(t, 0.9-2.0/3.0, da.AverageDilution, 1e-9)
	assert.Equal(t, 1, da.DilutedHolders)
	assert.InDelta(t, 1.0/6.0, m.OwnershipDistribution[HolderOptionPool], 1e-9)
}

func TestDeriveMetrics_EmptySnapshot(t *testing.T) {
	_, err := DeriveMetrics(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = DeriveMetrics(&Snapshot{PreInvestment: NewTable(), PostInvestment: NewTable()})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
