package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/pkg/errors"
)

const compsColumns = `sector, stage, geo, metric, multiples, reported_sample, notes, updated_at`

// CompsStore is the comparables library inside a HistoryStore file.
type CompsStore struct {
	store *HistoryStore
}

// Comps returns the comparables library sharing s's database.
func (s *HistoryStore) Comps() *CompsStore {
	return &CompsStore{store: s}
}

func (c *CompsStore) Get(ctx context.Context, k comps.Key) (*comps.Sample, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+compsColumns+` FROM comps_library WHERE sector = ? AND stage = ? AND geo = ? AND metric = ?`,
		k.Sector, k.Stage, k.Geo, k.Metric)
	sample, err := scanSample(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, comps.NotFound(k)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "get comps sample")
	}
	return sample, nil
}

func (c *CompsStore) List(ctx context.Context, sector string) ([]*comps.Sample, error) {
	query := `SELECT ` + compsColumns + ` FROM comps_library`
	var args []interface{}
	if sector != "" {
		query += ` WHERE sector = ?`
		args = append(args, sector)
	}
	query += ` ORDER BY sector, stage, geo, metric`

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list comps samples")
	}
	defer rows.Close()

	out := make([]*comps.Sample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan comps sample")
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate comps samples")
	}
	return out, nil
}

// Upsert replaces the sample stored under s.Key.
func (c *CompsStore) Upsert(ctx context.Context, s *comps.Sample) error {
	if s == nil {
		return errors.InvalidParam("comps sample is nil")
	}
	if err := s.Key.Validate(); err != nil {
		return err
	}
	multiples, err := json.Marshal(s.Multiples)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode comps multiples")
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO comps_library (`+compsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sector, stage, geo, metric) DO UPDATE SET
			multiples = excluded.multiples,
			reported_sample = excluded.reported_sample,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		s.Sector, s.Stage, s.Geo, s.Metric, string(multiples), s.ReportedSample, s.Notes, s.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "upsert comps sample").WithDetail(s.Key.String())
	}
	return nil
}

func scanSample(row scanner) (*comps.Sample, error) {
	var (
		s         comps.Sample
		multiples string
		updated   int64
	)
	if err := row.Scan(&s.Sector, &s.Stage, &s.Geo, &s.Metric, &multiples, &s.ReportedSample, &s.Notes, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(multiples), &s.Multiples); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Unix(0, updated).UTC()
	return &s, nil
}

var _ comps.Repository = (*CompsStore)(nil)
