package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/pkg/errors"
)

func TestCompsStore_UpsertGetList(t *testing.T) {
	lib := openTestStore(t).Comps()
	ctx := context.Background()
	key := comps.Key{Sector: "saas", Stage: "seed", Geo: "us", Metric: "ev/arr"}

	require.NoError(t, lib.Upsert(ctx, &comps.Sample{Key: key, Multiples: []float64{4, 6, 8}, Notes: "2025 cohort"}))
	require.NoError(t, lib.Upsert(ctx, &comps.Sample{Key: key, Multiples: []float64{5, 7, 9, 11}, ReportedSample: 40}))
	require.NoError(t, lib.Upsert(ctx, &comps.Sample{
		Key:       comps.Key{Sector: "fintech", Stage: "seed", Geo: "us", Metric: "ev/arr"},
		Multiples: []float64{3, 5},
	}))

	got, err := lib.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 9, 11}, got.Multiples)
	assert.Equal(t, 40, got.ReportedSample)
	assert.Empty(t, got.Notes)
	assert.False(t, got.UpdatedAt.IsZero())

	saas, err := lib.List(ctx, "saas")
	require.NoError(t, err)
	assert.Len(t, saas, 1)

	all, err := lib.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "fintech", all[0].Sector)
}

func TestCompsStore_Errors(t *testing.T) {
	lib := openTestStore(t).Comps()
	ctx := context.Background()

	_, err := lib.Get(ctx, comps.Key{Sector: "saas", Stage: "series-z", Geo: "us", Metric: "ev/arr"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeCompsNotFound))

	assert.Error(t, lib.Upsert(ctx, nil))
	assert.Error(t, lib.Upsert(ctx, &comps.Sample{Key: comps.Key{Sector: "saas"}}))
}
