package comps

import "context"

// Repository reads and maintains the library.
type Repository interface {
	// Get returns NotFound(k) when no sample exists.  k must be normalized.
	Get(ctx context.Context, k Key) (*Sample, error)
	// List returns every sample for sector, or all samples when sector is "".
	List(ctx context.Context, sector string) ([]*Sample, error)
	Upsert(ctx context.Context, s *Sample) error
}
