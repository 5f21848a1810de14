// Package sqlite keeps a local run history and comparables library for the
// CLI in a single SQLite file.  It implements run.Repository and
// comps.Repository so the application services persist CLI runs exactly as
// the API server persists them to PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

// HistoryStore persists runs to SQLite.
type HistoryStore struct {
	db     *sql.DB
	logger logging.Logger
	mu     sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.  Use
// ":memory:" for a throwaway store.
func Open(path string, log logging.Logger) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "open sqlite")
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "set WAL mode")
	}
	s := &HistoryStore{db: db, logger: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate sqlite history")
	}
	log.Debug("sqlite history opened", logging.String("path", path))
	return s, nil
}

func (s *HistoryStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			org_id     TEXT NOT NULL DEFAULT '',
			user_id    TEXT NOT NULL DEFAULT '',
			pitch_id   TEXT NOT NULL DEFAULT '',
			request    TEXT NOT NULL,
			result     TEXT NOT NULL,
			summary    TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pitch ON runs(pitch_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS comps_library (
			sector          TEXT NOT NULL,
			stage           TEXT NOT NULL,
			geo             TEXT NOT NULL,
			metric          TEXT NOT NULL,
			multiples       TEXT NOT NULL,
			reported_sample INTEGER NOT NULL DEFAULT 0,
			notes           TEXT NOT NULL DEFAULT '',
			updated_at      INTEGER NOT NULL,
			PRIMARY KEY (sector, stage, geo, metric)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

// Save inserts r, assigning an ID and timestamp when they are unset.
func (s *HistoryStore) Save(ctx context.Context, r *run.Run) error {
	if r == nil {
		return errors.InvalidParam("run is nil")
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, org_id, user_id, pitch_id, request, result, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), string(r.Kind), r.OrgID, r.UserID, r.PitchID,
		string(r.Request), string(r.Result), r.Summary, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert run").WithDetailf("run_id=%s", r.ID)
	}
	return nil
}

// Get returns the run with id.
func (s *HistoryStore) Get(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, org_id, user_id, pitch_id, request, result, summary, created_at FROM runs WHERE id = ?`,
		id.String())
	r, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetailf("run_id=%s", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "get run")
	}
	return r, nil
}

// List returns runs newest first.
func (s *HistoryStore) List(ctx context.Context, f run.Filter) ([]*run.Run, error) {
	f = f.Normalize()
	var (
		where []string
		args  []interface{}
	)
	for _, c := range []struct{ col, val string }{
		{"org_id", f.OrgID},
		{"pitch_id", f.PitchID},
		{"kind", string(f.Kind)},
	} {
		if c.val != "" {
			where = append(where, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	query := `SELECT id, kind, org_id, user_id, pitch_id, request, result, summary, created_at FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list runs")
	}
	defer rows.Close()

	out := make([]*run.Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate runs")
	}
	return out, nil
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*run.Run, error) {
	var (
		r             run.Run
		id, kind      string
		request, resp string
		created       int64
	)
	if err := row.Scan(&id, &kind, &r.OrgID, &r.UserID, &r.PitchID, &request, &resp, &r.Summary, &created); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	r.ID = parsed
	r.Kind = run.Kind(kind)
	r.Request = []byte(request)
	r.Result = []byte(resp)
	r.CreatedAt = time.Unix(0, created).UTC()
	return &r, nil
}

var _ run.Repository = (*HistoryStore)(nil)
