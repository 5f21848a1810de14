// Package run models a persisted computation: one valuation batch, cap-table
// simulation or waterfall, recorded with the org, user and pitch that
// requested it.
package run

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DealScope/pkg/errors"
)

// Kind is the computation a Run records.
type Kind string

const (
	KindValuation Kind = "valuation"
	KindCapTable  Kind = "captable"
	KindWaterfall Kind = "waterfall"
)

// Kinds lists every Kind.
func Kinds() []Kind { return []Kind{KindValuation, KindCapTable, KindWaterfall} }

// ParseKind accepts "" as "any kind".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "", KindValuation, KindCapTable, KindWaterfall:
		return k, nil
	}
	return "", errors.InvalidParam("unknown run kind").WithDetailf("kind=%q", s)
}

// Scope identifies who a computation ran for.  It is passed explicitly with
// every call; there is no ambient org or user.
type Scope struct {
	OrgID   string `json:"org_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	PitchID string `json:"pitch_id,omitempty"`
}

// Run is an immutable record of one computation.
type Run struct {
	Scope

	ID        uuid.UUID       `json:"run_id"`
	Kind      Kind            `json:"kind"`
	Request   json.RawMessage `json:"request"`
	Result    json.RawMessage `json:"result"`
	Summary   string          `json:"summary,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// New marshals request and result into a fresh Run.
func New(kind Kind, scope Scope, request, result interface{}, summary string) (*Run, error) {
	if _, err := ParseKind(string(kind)); err != nil || kind == "" {
		return nil, errors.InvalidParam("run kind is required").WithDetailf("kind=%q", kind)
	}
	req, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode run request")
	}
	res, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode run result")
	}
	return &Run{
		ID:        uuid.New(),
		Kind:      kind,
		Scope:     scope,
		Request:   req,
		Result:    res,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeResult unmarshals the stored result into v.
func (r *Run) DecodeResult(v interface{}) error {
	if err := json.Unmarshal(r.Result, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode run result").WithDetailf("run_id=%s", r.ID)
	}
	return nil
}
