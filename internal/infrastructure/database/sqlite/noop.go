package sqlite

import (
	"context"

	"github.com/google/uuid"

	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/pkg/errors"
)

// NoopStore is used when history is disabled: it discards saves and never
// finds anything.
type NoopStore struct{}

func NewNoopStore() NoopStore { return NoopStore{} }

func (NoopStore) Save(context.Context, *run.Run) error { return nil }

func (NoopStore) Get(_ context.Context, id uuid.UUID) (*run.Run, error) {
	return nil, errors.New(errors.ErrCodeRunNotFound, "run history is disabled").WithDetailf("run_id=%s", id)
}

func (NoopStore) List(context.Context, run.Filter) ([]*run.Run, error) { return []*run.Run{}, nil }

func (NoopStore) Close() error { return nil }
