package captable

import (
	"math"

	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// OwnershipTolerance bounds |Σ ownership_fraction − 1| on a computed table.
const OwnershipTolerance = 1e-9

const (
	defaultInvestorName  = "New Investor"
	defaultInvestorClass = "Preferred"
	defaultPoolName      = "Option Pool"
	defaultPoolClass     = "Options"
)

// Terms describes a priced round.
type Terms struct {
	InvestmentAmount    float64 `json:"investment_amount"`
	PreMoneyValuation   float64 `json:"pre_money_valuation"`
	OptionPoolTargetPct float64 `json:"option_pool_target_pct"`
	InvestorName        string  `json:"investor_name,omitempty"`
	InvestorClass       string  `json:"investor_class,omitempty"`
}

// Validate checks the round parameters.
func (t Terms) Validate() error {
	switch {
	case !(t.InvestmentAmount > 0) || math.IsInf(t.InvestmentAmount, 0):
		return errors.InvalidInput("investment_amount must be > 0").WithDetailf("investment_amount=%v", t.InvestmentAmount)
	case !(t.PreMoneyValuation > 0) || math.IsInf(t.PreMoneyValuation, 0):
		return errors.InvalidInput("pre_money_valuation must be > 0").WithDetailf("pre_money_valuation=%v", t.PreMoneyValuation)
	case !(t.OptionPoolTargetPct >= 0 && t.OptionPoolTargetPct < 1):
		return errors.InvalidInput("option_pool_target_pct must be in [0, 1)").WithDetailf("option_pool_target_pct=%v", t.OptionPoolTargetPct)
	}
	return nil
}

// InvestmentSummary reports the round economics.
type InvestmentSummary struct {
	PreMoney             float64 `json:"pre_money"`
	InvestmentAmount     float64 `json:"investment_amount"`
	PostMoney            float64 `json:"post_money"`
	PricePerShare        float64 `json:"price_per_share"`
	NewSharesIssued      int64   `json:"new_shares_issued"`
	OptionPoolExpansion  int64   `json:"option_pool_expansion"`
	TotalSharesBefore    int64   `json:"total_shares_before"`
	TotalSharesAfter     int64   `json:"total_shares_after"`
	NewInvestorOwnership float64 `json:"new_investor_ownership"`
}

// Snapshot is the outcome of Simulate.
type Snapshot struct {
	PreInvestment  *Table            `json:"pre_investment_table"`
	PostInvestment *Table            `json:"post_investment_table"`
	Summary        InvestmentSummary `json:"investment_summary"`
	NewInvestor    HolderID          `json:"new_investor_index"`
	OptionPool     HolderID          `json:"option_pool_index"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Simulate applies a priced round to pre.
//
// The option pool is topped up before the money comes in so that it reaches
// OptionPoolTargetPct of the post-round table; the top-up p solves
//
//	(existing_pool + p) / (pre_shares + p) = pct
//
// and the round price is pre_money / (pre_shares + p), so the top-up dilutes
// only the existing holders.  With no top-up this is pre_money / pre_shares.
// New investor shares are round(investment / price).
func Simulate(pre *Table, terms Terms) (*Snapshot, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if pre.Len() == 0 {
		return nil, errors.InvalidInput("pre-investment table is empty")
	}
	for _, e := range pre.entries {
		if e.Shares < 0 {
			return nil, errors.InvalidInput("shares must not be negative").WithDetailf("holder=%q shares=%d", e.Holder, e.Shares)
		}
		if _, err := ParseHolderType(string(e.HolderType)); err != nil {
			return nil, err
		}
	}
	preShares := pre.TotalShares()
	if preShares == 0 {
		return nil, errors.DivisionByZero("pre-investment shares total zero")
	}

	before := pre.Clone()
	for i := range before.entries {
		e := &before.entries[i]
		if e.HolderType == "" {
			e.HolderType = HolderOther
		}
		e.OwnershipFraction = float64(e.Shares) / float64(preShares)
		e.Dilution = 0
		e.DilutionFlagged = false
	}

	poolID := before.FirstOfType(HolderOptionPool)
	var existingPool int64
	for _, e := range before.entries {
		if e.HolderType == HolderOptionPool {
			existingPool += e.Shares
		}
	}

	var topUp int64
	if pct := terms.OptionPoolTargetPct; pct > 0 {
		need := (pct*float64(preShares) - float64(existingPool)) / (1 - pct)
		if need > 0 {
			topUp = int64(math.Round(need))
		}
	}

	price := terms.PreMoneyValuation / float64(preShares+topUp)
	newShares := int64(math.Round(terms.InvestmentAmount / price))
	if newShares <= 0 {
		return nil, errors.InvalidInput("investment too small to issue a share").
			WithDetailf("investment_amount=%v price_per_share=%v", terms.InvestmentAmount, price)
	}

	after := before.Clone()
	if topUp > 0 {
		if poolID == NoHolder {
			poolID = after.Add(Entry{
				Holder:     defaultPoolName,
				HolderType: HolderOptionPool,
				Class:      defaultPoolClass,
			})
		}
		after.entries[poolID].Shares += topUp
	}

	name := terms.InvestorName
	if name == "" {
		name = defaultInvestorName
	}
	class := terms.InvestorClass
	if class == "" {
		class = defaultInvestorClass
	}
	investorID := after.Add(Entry{
		Holder:        name,
		HolderType:    HolderInvestor,
		Shares:        newShares,
		PricePerShare: price,
		Class:         class,
	})

	postShares := after.TotalShares()
	var warnings []string
	for i := range after.entries {
		e := &after.entries[i]
		e.OwnershipFraction = float64(e.Shares) / float64(postShares)

		prior, existed := before.Get(e.ID)
		if !existed {
			e.Dilution = 0
			continue
		}
		e.Dilution = prior.OwnershipFraction - e.OwnershipFraction
		received := e.Shares > prior.Shares
		if e.Dilution < -OwnershipTolerance && !received {
			e.DilutionFlagged = true
			warnings = append(warnings, "ownership of "+e.Holder+" increased without new shares")
		}
	}

	if sum := after.OwnershipSum(); math.Abs(sum-1) > OwnershipTolerance {
		return nil, errors.New(errors.ErrCodeCapTableInvariant, "post-investment ownership does not sum to 1").
			WithDetailf("sum=%v", sum)
	}

	postMoney := terms.PreMoneyValuation + terms.InvestmentAmount
	snap := &Snapshot{
		PreInvestment:  before,
		PostInvestment: after,
		Summary: InvestmentSummary{
			PreMoney:             terms.PreMoneyValuation,
			InvestmentAmount:     terms.InvestmentAmount,
			PostMoney:            postMoney,
			PricePerShare:        price,
			NewSharesIssued:      newShares,
			OptionPoolExpansion:  topUp,
			TotalSharesBefore:    preShares,
			TotalSharesAfter:     postShares,
			NewInvestorOwnership: after.entries[investorID].OwnershipFraction,
		},
		NewInvestor: investorID,
		OptionPool:  poolID,
		Warnings:    warnings,
	}
	return snap, nil
}

// Describe renders a one-line human summary of the round.
func (s *Snapshot) Describe() string {
	if s == nil {
		return ""
	}
	return money.Dollars(s.Summary.InvestmentAmount) + " at " + money.Dollars(s.Summary.PreMoney) +
		" pre-money (" + money.Cents(s.Summary.PricePerShare) + "/share, " +
		money.Percent(s.Summary.NewInvestorOwnership, 2) + " to investor)"
}
