package valuation

import "github.com/turtacn/DealScope/pkg/errors"

// Spread turns a base valuation into a band: low = base×Low, high = base×High.
// A zero Spread means "use the method default".
type Spread struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Default spreads per method.
var (
	DefaultScorecardSpread = Spread{Low: 0.7, High: 1.3}
	DefaultVCSpread        = Spread{Low: 0.7, High: 1.3}
	DefaultBerkusSpread    = Spread{Low: 0.7, High: 1.3}
	DefaultRFSSpread       = Spread{Low: 0.8, High: 1.3}
)

// IsZero reports whether s is unset.
func (s Spread) IsZero() bool { return s.Low == 0 && s.High == 0 }

// resolve returns s, or def when s is unset, after checking 0 <= Low <= 1 <= High.
func (s Spread) resolve(def Spread) (Spread, error) {
	if s.IsZero() {
		return def, nil
	}
	if s.Low < 0 || s.Low > 1 || s.High < 1 {
		return Spread{}, errors.InvalidInput("spread must satisfy 0 <= low <= 1 <= high").
			WithDetailf("low=%g high=%g", s.Low, s.High)
	}
	return s, nil
}

// Defaults replaces the built-in spreads and Berkus ceiling for inputs that
// leave them unset.  Zero fields keep the built-in values.
type Defaults struct {
	Scorecard     Spread
	VC            Spread
	Berkus        Spread
	RFS           Spread
	BerkusCeiling float64
}

// WithDefaults returns a copy of in with unset tunables taken from d.  in is
// not modified; a nil or comps input is returned unchanged.
func WithDefaults(in Input, d Defaults) Input {
	switch v := in.(type) {
	case *ScorecardInput:
		if v == nil || !v.Spread.IsZero() || d.Scorecard.IsZero() {
			return in
		}
		c := *v
		c.Spread = d.Scorecard
		return &c
	case *VCMethodInput:
		if v == nil || !v.Spread.IsZero() || d.VC.IsZero() {
			return in
		}
		c := *v
		c.Spread = d.VC
		return &c
	case *BerkusInput:
		if v == nil {
			return in
		}
		c := *v
		if c.Spread.IsZero() {
			c.Spread = d.Berkus
		}
		if c.Ceiling == 0 {
			c.Ceiling = d.BerkusCeiling
		}
		return &c
	case *RFSInput:
		if v == nil || !v.Spread.IsZero() || d.RFS.IsZero() {
			return in
		}
		c := *v
		c.Spread = d.RFS
		return &c
	}
	return in
}
