package valuation

import (
	"fmt"

	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// MinCompsSample is the smallest sample that yields a meaningful band.
const MinCompsSample = 2

// CompsInput holds a sample of comparable multiples and the target's own
// revenue (or ARR).  Sector, Stage, Geo and Metric identify a library
// sample; the application layer fills Multiples from the library when the
// caller leaves them empty.
type CompsInput struct {
	Multiples     []float64 `json:"multiples"`
	TargetRevenue float64   `json:"target_revenue"`
	Metric        string    `json:"metric,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Geo           string    `json:"geo,omitempty"`
}

// Comparables applies the sample's quartiles to the target revenue:
// low = p25, base = median, high = p75.
func Comparables(in *CompsInput) (*Result, error) {
	if in == nil {
		return nil, errors.InvalidInput("comps input is nil")
	}
	if len(in.Multiples) < MinCompsSample {
		return nil, errors.InsufficientData(fmt.Sprintf("comparables need at least %d multiples", MinCompsSample)).
			WithDetailf("sample_size=%d", len(in.Multiples))
	}
	if in.TargetRevenue < 0 || !finite(in.TargetRevenue) {
		return nil, errors.InvalidInput("target_revenue must not be negative").WithDetailf("target_revenue=%g", in.TargetRevenue)
	}
	for i, m := range in.Multiples {
		if m < 0 || !finite(m) {
			return nil, errors.InvalidInput("comparable multiples must not be negative").WithDetailf("multiples[%d]=%g", i, m)
		}
	}

	sorted := sortedCopy(in.Multiples)
	p25 := percentile(sorted, 0.25)
	med := median(sorted)
	p75 := percentile(sorted, 0.75)

	metric := in.Metric
	if metric == "" {
		metric = "EV/Revenue"
	}
	notes := fmt.Sprintf("Comparables: median %s %s across %d comps applied to %s",
		money.Multiple(med), metric, len(sorted), money.Dollars(in.TargetRevenue))

	return newResult(MethodComps, p25*in.TargetRevenue, med*in.TargetRevenue, p75*in.TargetRevenue, notes, map[string]interface{}{
		"sample_size":     len(sorted),
		"p25_multiple":    p25,
		"median_multiple": med,
		"p75_multiple":    p75,
		"target_revenue":  in.TargetRevenue,
		"metric":          metric,
	})
}
