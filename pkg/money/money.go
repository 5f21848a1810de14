// Package money formats currency amounts and percentages for notes, CLI
// tables and log lines.  Amounts are computed as float64 in the core; this
// package only rounds for presentation.
package money

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places using half-away-from-zero.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Dollars renders v as a whole-dollar amount with thousands separators,
// e.g. 2500000 -> "$2,500,000" and -250000 -> "-$250,000".
func Dollars(v float64) string {
	d := decimal.NewFromFloat(v).Round(0)
	if d.IsNegative() {
		return "-$" + humanize.Comma(d.Neg().IntPart())
	}
	return "$" + humanize.Comma(d.IntPart())
}

// Cents renders v with two decimals, e.g. 0.625 -> "$0.63".
func Cents(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := humanize.Comma(d.IntPart())
	frac := d.Sub(decimal.NewFromInt(d.IntPart())).StringFixed(2)
	return sign + "$" + whole + frac[1:]
}

// Percent renders a fraction as a percentage with the given precision,
// e.g. Percent(0.8333, 2) -> "83.33%".
func Percent(fraction float64, places int32) string {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).StringFixed(places) + "%"
}

// Multiple renders a multiple such as 9.5 as "9.5x".
func Multiple(v float64) string {
	return decimal.NewFromFloat(v).Round(1).StringFixed(1) + "x"
}
