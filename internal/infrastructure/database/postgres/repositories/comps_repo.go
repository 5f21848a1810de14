package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/infrastructure/database/postgres"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

const compsColumns = `sector, stage, geo, metric, multiples, reported_sample, notes, updated_at`

type postgresCompsRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresCompsRepo returns a comps.Repository backed by comps_library.
func NewPostgresCompsRepo(conn *postgres.Connection, log logging.Logger) comps.Repository {
	return &postgresCompsRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *postgresCompsRepo) Get(ctx context.Context, k comps.Key) (*comps.Sample, error) {
	query := `SELECT ` + compsColumns + ` FROM comps_library WHERE sector = $1 AND stage = $2 AND geo = $3 AND metric = $4`
	start := time.Now()
	s, err := scanSample(r.executor.QueryRowContext(ctx, query, k.Sector, k.Stage, k.Geo, k.Metric))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, comps.NotFound(k)
		}
		logging.LogDatabaseQuery(r.log, "select comps_library", time.Since(start), 0, err)
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get comps sample")
	}
	logging.LogDatabaseQuery(r.log, "select comps_library", time.Since(start), 1, nil)
	return s, nil
}

func (r *postgresCompsRepo) List(ctx context.Context, sector string) ([]*comps.Sample, error) {
	query := `SELECT ` + compsColumns + ` FROM comps_library`
	var args []interface{}
	if sector != "" {
		query += ` WHERE sector = $1`
		args = append(args, sector)
	}
	query += ` ORDER BY sector, stage, geo, metric`

	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list comps samples")
	}
	defer rows.Close()

	out := make([]*comps.Sample, 0)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan comps sample")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate comps samples")
	}
	return out, nil
}

func (r *postgresCompsRepo) Upsert(ctx context.Context, s *comps.Sample) error {
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
	query := `
		INSERT INTO comps_library (` + compsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sector, stage, geo, metric) DO UPDATE SET
			multiples = EXCLUDED.multiples,
			reported_sample = EXCLUDED.reported_sample,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	start := time.Now()
	_, err = r.executor.ExecContext(ctx, query,
		s.Sector, s.Stage, s.Geo, s.Metric, multiples, s.ReportedSample, s.Notes, s.UpdatedAt,
	)
	logging.LogDatabaseQuery(r.log, "upsert comps_library", time.Since(start), 1, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert comps sample")
	}
	return nil
}

func scanSample(row scanner) (*comps.Sample, error) {
	var (
		s         comps.Sample
		multiples []byte
	)
	if err := row.Scan(&s.Sector, &s.Stage, &s.Geo, &s.Metric, &multiples, &s.ReportedSample, &s.Notes, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(multiples, &s.Multiples); err != nil {
		return nil, err
	}
	return &s, nil
}
