package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/infrastructure/database/postgres"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

const runColumns = `id, kind, org_id, user_id, pitch_id, request, result, summary, created_at`

type postgresRunRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresRunRepo returns a run.Repository backed by the runs table.
func NewPostgresRunRepo(conn *postgres.Connection, log logging.Logger) run.Repository {
	return &postgresRunRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *postgresRunRepo) Save(ctx context.Context, rn *run.Run) error {
	if rn == nil {
		return errors.InvalidParam("run is nil")
	}
	if rn.ID == uuid.Nil {
		rn.ID = uuid.New()
	}
	if rn.CreatedAt.IsZero() {
		rn.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	start := time.Now()
	_, err := r.executor.ExecContext(ctx, query,
		rn.ID, string(rn.Kind), rn.OrgID, rn.UserID, rn.PitchID,
		[]byte(rn.Request), []byte(rn.Result), rn.Summary, rn.CreatedAt,
	)
	logging.LogDatabaseQuery(r.log, "insert runs", time.Since(start), 1, err)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(err, errors.ErrCodeConflict, "run already exists").WithDetailf("run_id=%s", rn.ID)
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save run")
	}
	return nil
}

func (r *postgresRunRepo) Get(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	rn, err := scanRun(r.executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetailf("run_id=%s", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get run")
	}
	return rn, nil
}

func (r *postgresRunRepo) List(ctx context.Context, f run.Filter) ([]*run.Run, error) {
	f = f.Normalize()
	var (
		where []string
		args  []interface{}
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("org_id", f.OrgID)
	add("pitch_id", f.PitchID)
	add("kind", string(f.Kind))

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	start := time.Now()
	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		logging.LogDatabaseQuery(r.log, "select runs", time.Since(start), 0, err)
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list runs")
	}
	defer rows.Close()

	runs := make([]*run.Run, 0)
	for rows.Next() {
		rn, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan run")
		}
		runs = append(runs, rn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate runs")
	}
	logging.LogDatabaseQuery(r.log, "select runs", time.Since(start), int64(len(runs)), nil)
	return runs, nil
}

func scanRun(row scanner) (*run.Run, error) {
	var (
		rn       run.Run
		kind     string
		req, res []byte
	)
	if err := row.Scan(&rn.ID, &kind, &rn.OrgID, &rn.UserID, &rn.PitchID, &req, &res, &rn.Summary, &rn.CreatedAt); err != nil {
		return nil, err
	}
	rn.Kind = run.Kind(kind)
	rn.Request = req
	rn.Result = res
	return &rn, nil
}
