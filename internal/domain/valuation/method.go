// Package valuation implements the five early-stage valuation methods
// (Scorecard, VC Method, Comparables, Berkus, Risk Factor Summation) and the
// aggregator that runs a caller-ordered batch of them.
//
// Every method is a pure function of its parameter record: no I/O, no
// randomness and no retained state.  Inputs are never mutated and every
// Result is freshly allocated.
package valuation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/DealScope/pkg/errors"
)

// Method identifies a valuation method on the wire.
type Method string

const (
	MethodScorecard Method = "scorecard"
	MethodVC        Method = "vc_method"
	MethodComps     Method = "comps"
	MethodBerkus    Method = "berkus"
	MethodRFS       Method = "rfs"
)

// Methods lists every supported method in canonical order.
func Methods() []Method {
	return []Method{MethodScorecard, MethodVC, MethodComps, MethodBerkus, MethodRFS}
}

// ParseMethod normalises s and returns the matching Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodScorecard, MethodVC, MethodComps, MethodBerkus, MethodRFS:
		return m, nil
	}
	return "", errors.New(errors.ErrCodeUnknownMethod, "unknown valuation method").WithDetailf("method=%q", s)
}

// ─────────────────────────────────────────────────────────────────────────────
// Input: sealed sum type over the five parameter records
// ─────────────────────────────────────────────────────────────────────────────

// Input is implemented only by the five parameter records in this package:
// *ScorecardInput, *VCMethodInput, *CompsInput, *BerkusInput and *RFSInput.
// The unexported marker keeps the set closed so that Compute's type switch
// is exhaustive.
type Input interface {
	Method() Method
	isInput()
}

func (*ScorecardInput) isInput() {}
func (*VCMethodInput) isInput()  {}
func (*CompsInput) isInput()     {}
func (*BerkusInput) isInput()    {}
func (*RFSInput) isInput()       {}

// Method implementations.
func (*ScorecardInput) Method() Method { return MethodScorecard }
func (*VCMethodInput) Method() Method  { return MethodVC }
func (*CompsInput) Method() Method     { return MethodComps }
func (*BerkusInput) Method() Method    { return MethodBerkus }
func (*RFSInput) Method() Method       { return MethodRFS }

// Compute dispatches in to its method.
func Compute(in Input) (*Result, error) {
	switch v := in.(type) {
	case *ScorecardInput:
		return Scorecard(v)
	case *VCMethodInput:
		return VCMethod(v)
	case *CompsInput:
		return Comparables(v)
	case *BerkusInput:
		return Berkus(v)
	case *RFSInput:
		return RiskFactorSummation(v)
	case nil:
		return nil, errors.InvalidInput("valuation input is nil")
	default:
		return nil, errors.New(errors.ErrCodeUnknownMethod, fmt.Sprintf("unsupported input type %T", in))
	}
}

// NewInput returns an empty parameter record for m.
func NewInput(m Method) (Input, error) {
	switch m {
	case MethodScorecard:
		return &ScorecardInput{}, nil
	case MethodVC:
		return &VCMethodInput{}, nil
	case MethodComps:
		return &CompsInput{}, nil
	case MethodBerkus:
		return &BerkusInput{}, nil
	case MethodRFS:
		return &RFSInput{}, nil
	}
	return nil, errors.New(errors.ErrCodeUnknownMethod, "unknown valuation method").WithDetailf("method=%q", m)
}

// DecodeInput decodes the wire form {method, inputs} into the matching
// parameter record.  Unknown fields are ignored; an empty or null raw
// document yields the zero-valued record.
func DecodeInput(method string, raw json.RawMessage) (Input, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	in, err := NewInput(m)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return in, nil
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, errors.InvalidInput("malformed inputs").WithDetailf("method=%s: %v", m, err).WithCause(err)
	}
	return in, nil
}

// PitchInputs is the caller's immutable pitch snapshot.  The core reads it
// only to resolve defaults (for example the comparables library key).
type PitchInputs struct {
	Sector     string   `json:"sector,omitempty"`
	Stage      string   `json:"stage,omitempty"`
	Geo        string   `json:"geo,omitempty"`
	AskAmount  float64  `json:"ask_amount,omitempty"`
	CurrentARR float64  `json:"current_arr,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	UseOfFunds []string `json:"use_of_funds,omitempty"`
}
