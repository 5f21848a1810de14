package captable

import (
	"github.com/turtacn/DealScope/pkg/errors"
)

// DilutionAnalysis summarises how the round diluted existing holders.
type DilutionAnalysis struct {
	TotalDilution   float64 `json:"total_dilution"`
	FounderDilution float64 `json:"founder_dilution"`
	AverageDilution float64 `json:"average_dilution"`
	DilutedHolders  int     `json:"diluted_holders"`
}

// ValuationMetrics compares per-share value before and after the round.
type ValuationMetrics struct {
	PreMoneyPerShare  float64 `json:"pre_money_per_share"`
	PostMoneyPerShare float64 `json:"post_money_per_share"`
	PriceIncrease     float64 `json:"price_increase"`
}

// ShareMetrics mirrors the share counts of the investment summary.
type ShareMetrics struct {
	TotalSharesBefore   int64 `json:"total_shares_before"`
	TotalSharesAfter    int64 `json:"total_shares_after"`
	NewSharesIssued     int64 `json:"new_shares_issued"`
	OptionPoolExpansion int64 `json:"option_pool_expansion"`
}

// Metrics is the derived view of a Snapshot.
type Metrics struct {
	OwnershipDistribution map[HolderType]float64 `json:"ownership_distribution"`
	DilutionAnalysis      DilutionAnalysis       `json:"dilution_analysis"`
	ValuationMetrics      ValuationMetrics       `json:"valuation_metrics"`
	ShareMetrics          ShareMetrics           `json:"share_metrics"`
}

// DeriveMetrics summarises a snapshot.  Every holder type appears in the
// ownership distribution, with zero when absent.
func DeriveMetrics(s *Snapshot) (*Metrics, error) {
	if s == nil || s.PreInvestment.Len() == 0 || s.PostInvestment.Len() == 0 {
		return nil, errors.InvalidInput("snapshot is empty")
	}
	preShares := s.PreInvestment.TotalShares()
	postShares := s.PostInvestment.TotalShares()
	if preShares == 0 || postShares == 0 {
		return nil, errors.DivisionByZero("snapshot share totals are zero")
	}

	dist := make(map[HolderType]float64, 4)
	for _, ht := range HolderTypes() {
		dist[ht] = 0
	}

	var da DilutionAnalysis
	for _, e := range s.PostInvestment.entries {
		ht := e.HolderType
		if ht == "" {
			ht = HolderOther
		}
		dist[ht] += e.OwnershipFraction

		if ht == HolderFounder {
			da.FounderDilution += e.Dilution
		}
		// A topped-up pool gains ownership; only losses count as dilution.
		if e.Dilution > 0 {
			da.TotalDilution += e.Dilution
			da.DilutedHolders++
		}
	}
	if da.DilutedHolders > 0 {
		da.AverageDilution = da.TotalDilution / float64(da.DilutedHolders)
	}

	vm := ValuationMetrics{
		PreMoneyPerShare:  s.Summary.PreMoney / float64(preShares),
		PostMoneyPerShare: s.Summary.PostMoney / float64(postShares),
	}
	if vm.PreMoneyPerShare > 0 {
		vm.PriceIncrease = (vm.PostMoneyPerShare - vm.PreMoneyPerShare) / vm.PreMoneyPerShare
	}

	return &Metrics{
		OwnershipDistribution: dist,
		DilutionAnalysis:      da,
		ValuationMetrics:      vm,
		ShareMetrics: ShareMetrics{
			TotalSharesBefore:   s.Summary.TotalSharesBefore,
			TotalSharesAfter:    s.Summary.TotalSharesAfter,
			NewSharesIssued:     s.Summary.NewSharesIssued,
			OptionPoolExpansion: s.Summary.OptionPoolExpansion,
		},
	}, nil
}
