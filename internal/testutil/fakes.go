package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/DealScope/internal/domain/comps"
)

// ── comparables library ──────────────────────────────────────────────────────

// CompsRepo is an in-memory comps.Repository.  Keys are normalized by the
// caller, as with the PostgreSQL implementation.
type CompsRepo struct {
	mu      sync.Mutex
	samples map[comps.Key]*comps.Sample
	gets    int

	// Err, when set, is returned by every call.
	Err error
}

// NewCompsRepo seeds a repository with samples.
func NewCompsRepo(samples ...*comps.Sample) *CompsRepo {
	r := &CompsRepo{samples: make(map[comps.Key]*comps.Sample)}
	for _, s := range samples {
		r.samples[s.Key] = s
	}
	return r
}

func (r *CompsRepo) Get(_ context.Context, k comps.Key) (*comps.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.Err != nil {
		return nil, r.Err
	}
	s, ok := r.samples[k]
	if !ok {
		return nil, comps.NotFound(k)
	}
	cp := *s
	return &cp, nil
}

func (r *CompsRepo) List(_ context.Context, sector string) ([]*comps.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*comps.Sample, 0, len(r.samples))
	for _, s := range r.samples {
		if sector == "" || s.Sector == sector {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (r *CompsRepo) Upsert(_ context.Context, s *comps.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.samples[s.Key] = s
	return nil
}

// Gets reports how many Get calls reached the repository.
func (r *CompsRepo) Gets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

// ── events ───────────────────────────────────────────────────────────────────

// MockEventPublisher is a testify mock of the application event publisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	args := m.Called(ctx, topic, eventType, key, payload)
	return args.Error(0)
}
