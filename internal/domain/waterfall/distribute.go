package waterfall

import (
	"math"

	"github.com/turtacn/DealScope/pkg/errors"
)

// convertThreshold is the minimum gain that flips a conversion decision.
const convertThreshold = 1e-9

// SumTolerance bounds |Σ actual_payout − exit_value| relative to the exit.
const SumTolerance = 1e-6

// ExitScenario is a caller-supplied exit.  Multiple is filled by Distribute.
type ExitScenario struct {
	Name      string  `json:"scenario_name"`
	ExitValue float64 `json:"exit_value"`
	Multiple  float64 `json:"multiple,omitempty"`
}

// PayoutLine is one holder's share of an exit.
type PayoutLine struct {
	Index                       int     `json:"index"`
	Holder                      string  `json:"holder"`
	Class                       string  `json:"class"`
	Shares                      int64   `json:"shares"`
	LiquidationPreferenceAmount float64 `json:"liquidation_preference_amount"`
	ActualPayout                float64 `json:"actual_payout"`
	OwnershipPercentageOfPayout float64 `json:"ownership_percentage_of_payout"`
	PreferencePayout            float64 `json:"preference_payout"`
	ParticipationPayout         float64 `json:"participation_payout"`
	Converted                   bool    `json:"converted"`
}

// Result is the distribution of one exit scenario.
type Result struct {
	Scenario  string       `json:"scenario"`
	ExitValue float64      `json:"exit_value"`
	Multiple  float64      `json:"multiple"`
	Payouts   []PayoutLine `json:"payouts"`
}

// ClassTotal sums actual payouts for a class name.
func (r Result) ClassTotal(class string) float64 {
	total := 0.0
	for _, p := range r.Payouts {
		if p.Class == class {
			total += p.ActualPayout
		}
	}
	return total
}

// Total sums every actual payout.
func (r Result) Total() float64 {
	total := 0.0
	for _, p := range r.Payouts {
		total += p.ActualPayout
	}
	return total
}

// Distribute runs every scenario over entries.
//
// Preferences are paid class by class in seniority order, each capped at
// what remains and split pro-rata by shares within the class.  The residual
// goes pro-rata by shares to common, participating and converted holders.
// A non-participating class converts to common when doing so pays it more
// than its preference given every other class's choice.  Conversions are
// found by fixed-point iteration and a conversion is undone when a later
// one dilutes the class below its preference.
func Distribute(entries []ClassedEntry, scenarios []ExitScenario) ([]Result, error) {
	arena, err := newClassArena(entries)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, errors.InvalidInput("at least one exit scenario is required")
	}
	for i, sc := range scenarios {
		if !(sc.ExitValue >= 0) || math.IsInf(sc.ExitValue, 0) {
			return nil, errors.InvalidInput("exit_value must be >= 0").WithDetailf("scenario[%d] exit_value=%v", i, sc.ExitValue)
		}
	}

	order := arena.seniorityOrder()
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := arena.distribute(order, sc)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

type allocation struct {
	preference    []float64
	participation []float64
	classTotal    []float64
}

func (a *classArena) distribute(order []ClassID, sc ExitScenario) (Result, error) {
	converted := make([]bool, len(a.classes))
	p := a.pass(order, sc.ExitValue, converted)

	// Best response: each round flips the one class that gains most from
	// switching, in either direction, until no class gains.
	maxRounds := 2 * len(a.classes) * (len(a.classes) + 1)
	for round := 0; round < maxRounds; round++ {
		best, bestGain := NoClass, convertThreshold
		for _, c := range a.classes {
			if c.participating || !c.hasPreference() {
				continue
			}
			trial := make([]bool, len(converted))
			copy(trial, converted)
			trial[c.id] = !converted[c.id]
			if gain := a.pass(order, sc.ExitValue, trial).classTotal[c.id] - p.classTotal[c.id]; gain > bestGain {
				best, bestGain = c.id, gain
			}
		}
		if best == NoClass {
			break
		}
		converted[best] = !converted[best]
		p = a.pass(order, sc.ExitValue, converted)
	}

	res := Result{
		Scenario:  sc.Name,
		ExitValue: sc.ExitValue,
		Payouts:   make([]PayoutLine, len(a.entries)),
	}
	if a.invested > 0 {
		res.Multiple = sc.ExitValue / a.invested
	}
	for i, e := range a.entries {
		c := a.classes[a.entryClass[i]]
		line := PayoutLine{
			Index:               i,
			Holder:              e.Holder,
			Class:               c.name,
			Shares:              e.Shares,
			PreferencePayout:    p.preference[i],
			ParticipationPayout: p.participation[i],
			ActualPayout:        p.preference[i] + p.participation[i],
			Converted:           converted[c.id],
		}
		if c.hasPreference() {
			line.LiquidationPreferenceAmount = c.multiple * e.Invested
		}
		if sc.ExitValue > 0 {
			line.OwnershipPercentageOfPayout = line.ActualPayout / sc.ExitValue
		}
		res.Payouts[i] = line
	}

	if diff := math.Abs(res.Total() - sc.ExitValue); diff > SumTolerance*math.Max(1, sc.ExitValue) {
		return Result{}, errors.Internal("payouts do not sum to exit value").
			WithDetailf("scenario=%q diff=%v", sc.Name, diff)
	}
	return res, nil
}

// pass performs one distribution with the given set of converted classes.
func (a *classArena) pass(order []ClassID, exit float64, converted []bool) allocation {
	p := allocation{
		preference:    make([]float64, len(a.entries)),
		participation: make([]float64, len(a.entries)),
		classTotal:    make([]float64, len(a.classes)),
	}
	remaining := exit

	for _, id := range order {
		c := a.classes[id]
		if converted[id] || !c.hasPreference() || remaining <= 0 {
			continue
		}
		amount := math.Min(remaining, c.preferenceAmount())
		a.splitWithinClass(c, amount, p.preference)
		p.classTotal[id] += amount
		remaining -= amount
	}
	if remaining <= 0 {
		return p
	}

	var residualShares int64
	joins := func(c *shareClass) bool {
		return !c.hasPreference() || c.participating || converted[c.id]
	}
	for _, c := range a.classes {
		if joins(c) {
			residualShares += c.shares
		}
	}
	all := residualShares == 0
	if all {
		residualShares = a.totalShares
	}
	for i, e := range a.entries {
		id := a.entryClass[i]
		if !all && !joins(a.classes[id]) {
			continue
		}
		amount := remaining * float64(e.Shares) / float64(residualShares)
		p.participation[i] += amount
		p.classTotal[id] += amount
	}
	return p
}

// splitWithinClass divides amount across the class by shares, or by
// invested capital when the class holds no shares.
func (a *classArena) splitWithinClass(c *shareClass, amount float64, into []float64) {
	for _, i := range c.members {
		e := a.entries[i]
		switch {
		case c.shares > 0:
			into[i] += amount * float64(e.Shares) / float64(c.shares)
		case c.invested > 0:
			into[i] += amount * e.Invested / c.invested
		}
	}
}
