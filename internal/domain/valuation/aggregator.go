package valuation

import (
	"encoding/json"
	"math"

	"github.com/turtacn/DealScope/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Batch evaluation with per-method failure isolation
// ─────────────────────────────────────────────────────────────────────────────

// Request is one entry of a batch.  Either Input is set directly or the wire
// pair (MethodName, Inputs) is decoded by the aggregator.
type Request struct {
	MethodName string          `json:"method"`
	Inputs     json.RawMessage `json:"inputs,omitempty"`

	// Input, when non-nil, takes precedence over MethodName/Inputs.
	Input Input `json:"-"`
}

// resolve returns the typed input for r.
func (r Request) resolve() (Input, error) {
	if r.Input != nil {
		return r.Input, nil
	}
	return DecodeInput(r.MethodName, r.Inputs)
}

// OutcomeError is the serialisable per-method failure.
type OutcomeError struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Detail  string           `json:"detail,omitempty"`
}

// Outcome is one slot of the batch result: exactly one of Result and Err is set.
type Outcome struct {
	Method Method
	Result *Result
	Err    *OutcomeError
}

// OK reports whether the method succeeded.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// MarshalJSON renders a success as the flattened Result and a failure as
// {method, error:{code, message, detail}}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.OK() {
		return json.Marshal(o.Result)
	}
	return json.Marshal(struct {
		Method Method        `json:"method"`
		Error  *OutcomeError `json:"error"`
	}{o.Method, o.Err})
}

// UnmarshalJSON decodes either rendering of MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var probe struct {
		Method Method        `json:"method"`
		Error  *OutcomeError `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*o = Outcome{Method: probe.Method}
	if probe.Error != nil {
		o.Err = probe.Error
		return nil
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	o.Result = &r
	return nil
}

func outcomeError(err error) *OutcomeError {
	ae, ok := errors.AsAppError(err)
	if !ok {
		ae = errors.Wrap(err, errors.ErrCodeValuationFailed, "valuation failed")
	}
	return &OutcomeError{Code: ae.Code, Message: ae.Message, Detail: ae.Detail}
}

// Aggregator runs a caller-ordered batch of valuation requests.  One failing
// method never prevents the others from producing results.
type Aggregator struct{}

// NewAggregator returns an Aggregator.
func NewAggregator() *Aggregator { return &Aggregator{} }

// Run evaluates every request in order and returns one Outcome per request.
func (a *Aggregator) Run(requests []Request) []Outcome {
	out := make([]Outcome, 0, len(requests))
	for _, req := range requests {
		out = append(out, a.runOne(req))
	}
	return out
}

func (a *Aggregator) runOne(req Request) Outcome {
	in, err := req.resolve()
	if err != nil {
		return Outcome{Method: Method(req.MethodName), Err: outcomeError(err)}
	}
	res, err := Compute(in)
	if err != nil {
		return Outcome{Method: in.Method(), Err: outcomeError(err)}
	}
	return Outcome{Method: in.Method(), Result: res}
}

// ─────────────────────────────────────────────────────────────────────────────
// Consensus band
// ─────────────────────────────────────────────────────────────────────────────

// ConsensusBand summarises successful outcomes: the lowest low, the median of
// the bases and the highest high.
type ConsensusBand struct {
	Low       float64  `json:"result_low"`
	Base      float64  `json:"result_base"`
	High      float64  `json:"result_high"`
	Methods   []Method `json:"methods"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
}

// Consensus folds outcomes into a ConsensusBand.  With no successes the band
// is zero and Methods is empty.
func Consensus(outcomes []Outcome) ConsensusBand {
	band := ConsensusBand{Methods: []Method{}}
	bases := make([]float64, 0, len(outcomes))
	low, high := math.Inf(1), math.Inf(-1)
	for _, o := range outcomes {
		if !o.OK() {
			band.Failed++
			continue
		}
		band.Succeeded++
		band.Methods = append(band.Methods, o.Method)
		bases = append(bases, o.Result.Base)
		low = math.Min(low, o.Result.Low)
		high = math.Max(high, o.Result.High)
	}
	if len(bases) == 0 {
		return band
	}
	band.Low = low
	band.Base = median(sortedCopy(bases))
	band.High = high
	return band
}
