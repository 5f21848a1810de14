package waterfall

import (
	"github.com/turtacn/DealScope/internal/domain/captable"
	"github.com/turtacn/DealScope/pkg/errors"
)

// DefaultScenarios returns the standard exits as multiples of postMoney.
func DefaultScenarios(postMoney float64) []ExitScenario {
	return []ExitScenario{
		{Name: "Low Exit", ExitValue: postMoney * 0.5},
		{Name: "Base Case", ExitValue: postMoney},
		{Name: "High Exit", ExitValue: postMoney * 2},
		{Name: "Home Run", ExitValue: postMoney * 5},
	}
}

// PreferenceTerms are applied to every investor holder by FromSnapshot.
type PreferenceTerms struct {
	Multiple      float64 `json:"preference_multiple"`
	Participating bool    `json:"participating"`
	Seniority     int     `json:"seniority"`
}

// DefaultPreferenceTerms is 1x non-participating at rank 1.
func DefaultPreferenceTerms() PreferenceTerms {
	return PreferenceTerms{Multiple: 1, Seniority: 1}
}

// FromSnapshot converts the post-investment table of snap into classed
// entries in HolderID order.  Investor holders become preferred under
// terms, with invested = shares × price_per_share; everyone else is common.
// A zero Multiple or Seniority takes the default.
func FromSnapshot(snap *captable.Snapshot, terms PreferenceTerms) ([]ClassedEntry, error) {
	if snap == nil || snap.PostInvestment.Len() == 0 {
		return nil, errors.InvalidInput("snapshot is empty")
	}
	def := DefaultPreferenceTerms()
	if terms.Multiple == 0 {
		terms.Multiple = def.Multiple
	}
	if terms.Seniority == 0 {
		terms.Seniority = def.Seniority
	}
	if terms.Multiple < 0 || terms.Seniority < 0 {
		return nil, errors.InvalidInput("preference terms must not be negative").
			WithDetailf("multiple=%v seniority=%d", terms.Multiple, terms.Seniority)
	}

	rows := snap.PostInvestment.Entries()
	out := make([]ClassedEntry, 0, len(rows))
	for _, e := range rows {
		ce := ClassedEntry{Holder: e.Holder, Shares: e.Shares, Class: CommonClass}
		if e.HolderType == captable.HolderInvestor {
			ce.Class = e.Class
			if ce.Class == "" {
				ce.Class = "Preferred"
			}
			ce.Invested = float64(e.Shares) * e.PricePerShare
			ce.PreferenceMultiple = terms.Multiple
			ce.Seniority = terms.Seniority
			ce.Participating = terms.Participating
		}
		out = append(out, ce)
	}
	return out, nil
}
