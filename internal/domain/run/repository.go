package run

import (
	"context"

	"github.com/google/uuid"
)

// DefaultListLimit caps List when Filter.Limit is unset.
const DefaultListLimit = 50

// Filter selects runs for List.  Empty fields match everything.
type Filter struct {
	OrgID   string
	PitchID string
	Kind    Kind
	Limit   int
	Offset  int
}

// Normalize applies DefaultListLimit and clamps negatives.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repository persists runs.  Get returns an ErrCodeRunNotFound error for an
// unknown ID.  List orders newest first.
type Repository interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, f Filter) ([]*Run, error)
}
