package valuation

import (
	"encoding/json"
	"math"

	"github.com/turtacn/DealScope/pkg/errors"
)

// Result is the uniform output of every method.
//
// Diagnostics carry method-specific fields (weighted_score, post_money,
// sample_size, ...).  They are flattened into the top-level JSON object so
// that consumers see {method, result_low, result_base, result_high, notes,
// <diagnostics...>}.
type Result struct {
	Method      Method
	Low         float64
	Base        float64
	High        float64
	Notes       string
	Diagnostics map[string]interface{}
}

// reserved keys cannot be overridden by diagnostics.
var reservedKeys = map[string]struct{}{
	"method": {}, "result_low": {}, "result_base": {}, "result_high": {}, "notes": {},
}

// MarshalJSON flattens Diagnostics alongside the fixed fields.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Diagnostics)+5)
	for k, v := range r.Diagnostics {
		if _, taken := reservedKeys[k]; taken {
			continue
		}
		out[k] = v
	}
	out["method"] = r.Method
	out["result_low"] = r.Low
	out["result_base"] = r.Base
	out["result_high"] = r.High
	out["notes"] = r.Notes
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON; unknown keys land in
// Diagnostics.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{}
	decode := func(key string, dst interface{}) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return json.Unmarshal(v, dst)
	}
	if err := decode("method", &r.Method); err != nil {
		return err
	}
	if err := decode("result_low", &r.Low); err != nil {
		return err
	}
	if err := decode("result_base", &r.Base); err != nil {
		return err
	}
	if err := decode("result_high", &r.High); err != nil {
		return err
	}
	if err := decode("notes", &r.Notes); err != nil {
		return err
	}
	if len(raw) > 0 {
		r.Diagnostics = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			r.Diagnostics[k] = val
		}
	}
	return nil
}

// Validate checks the band invariant 0 <= low <= base <= high.
func (r *Result) Validate() error {
	for _, v := range []float64{r.Low, r.Base, r.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrCodeValuationFailed, "valuation produced a non-finite value").WithDetailf("method=%s", r.Method)
		}
	}
	if r.Low < 0 || r.Low > r.Base || r.Base > r.High {
		return errors.New(errors.ErrCodeValuationFailed, "valuation band out of order").
			WithDetailf("method=%s low=%g base=%g high=%g", r.Method, r.Low, r.Base, r.High)
	}
	return nil
}

// newResult builds a Result and checks its band before returning it.
func newResult(m Method, low, base, high float64, notes string, diag map[string]interface{}) (*Result, error) {
	r := &Result{
		Method:      m,
		Low:         low,
		Base:        base,
		High:        high,
		Notes:       notes,
		Diagnostics: diag,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
