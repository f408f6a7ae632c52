// Package store persists conversion runs and their rejected rows in
// PostgreSQL.
//
// The store is optional: the CLI and server only open a pool when
// DATABASE_URL is set.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Beginner starts transactions. Satisfied by both *pgxpool.Pool and pgx.Tx.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Run is one persisted conversion.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	Schema     string    `json:"schema"` // "" for raw conversions
	Rows       int       `json:"rows"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	BytesRead  int64     `json:"bytesRead"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store records conversion runs.
type Store struct {
	db DBTX
}

// New returns a Store backed by db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversion_runs (
	id          UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	schema_name TEXT,
	row_count   INTEGER NOT NULL,
	accepted    INTEGER NOT NULL,
	rejected    INTEGER NOT NULL,
	bytes_read  BIGINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS conversion_row_errors (
	run_id    UUID NOT NULL REFERENCES conversion_runs(id) ON DELETE CASCADE,
	row_index INTEGER NOT NULL,
	raw       TEXT[] NOT NULL,
	issues    JSONB NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_conversion_runs_started_at ON conversion_runs (started_at DESC);
`

// EnsureSchema creates the store tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// RecordRun inserts run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversion_runs
			(id, source, schema_name, row_count, accepted, rejected, bytes_read, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pgtype.UUID{Bytes: run.ID, Valid: true},
		run.Source,
		pgtype.Text{String: run.Schema, Valid: run.Schema != ""},
		run.Rows,
		run.Accepted,
		run.Rejected,
		run.BytesRead,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("store: record run %s: %w", run.ID, err)
	}
	return nil
}

var rowErrorColumns = []string{"run_id", "row_index", "raw", "issues"}

// RecordRowErrors bulk-inserts the rejected rows of a run with COPY.
// It returns the number of rows written.
func (s *Store) RecordRowErrors(ctx context.Context, runID uuid.UUID, errs []*parser.SchemaError) (int64, error) {
	if len(errs) == 0 {
		return 0, nil
	}

	id := pgtype.UUID{Bytes: runID, Valid: true}
	rows := make([][]any, 0, len(errs))
	for _, e := range errs {
		issues, err := json.Marshal(e.Issues)
		if err != nil {
			return 0, fmt.Errorf("store: encode issues for row %d: %w", e.RowIndex, err)
		}
		rows = append(rows, []any{id, int32(e.RowIndex), []string(e.Raw), issues})
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"conversion_row_errors"}, rowErrorColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("store: record row errors for run %s: %w", runID, err)
	}
	return n, nil
}

// RecordConversion saves run and its rejected rows in one transaction, so a
// failed COPY leaves no run behind. db must also implement Beginner.
// It returns the number of row errors written.
func (s *Store) RecordConversion(ctx context.Context, run Run, errs []*parser.SchemaError) (int64, error) {
	b, ok := s.db.(Beginner)
	if !ok {
		return 0, errors.New("store: database does not support transactions")
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := New(tx)
	if err := txStore.RecordRun(ctx, run); err != nil {
		return 0, err
	}
	n, err := txStore.RecordRowErrors(ctx, run.ID, errs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit run %s: %w", run.ID, err)
	}
	return n, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, source, schema_name, row_count, accepted, rejected, bytes_read, started_at, finished_at
		FROM conversion_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent runs: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row from conversion_runs.
func scanRun(row pgx.Row) (Run, error) {
	var (
		id         pgtype.UUID
		source     string
		schemaName pgtype.Text
		rowCount   int32
		accepted   int32
		rejected   int32
		bytesRead  int64
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &source, &schemaName, &rowCount, &accepted, &rejected, &bytesRead, &startedAt, &finishedAt)
	if err != nil {
		return Run{}, err
	}

	return Run{
		ID:         uuid.UUID(id.Bytes),
		Source:     source,
		Schema:     schemaName.String,
		Rows:       int(rowCount),
		Accepted:   int(accepted),
		Rejected:   int(rejected),
		BytesRead:  bytesRead,
		StartedAt:  startedAt.Time,
		FinishedAt: finishedAt.Time,
	}, nil
}
