package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

// fakeDB records statements and serves canned query rows.
type fakeDB struct {
	execs    []string
	execArgs [][]any
	execErr  error

	copyTable  pgx.Identifier
	copyCols   []string
	copyRows   [][]any
	copyErr    error
	queryRows  [][]any
	queryErr   error
	queryLimit any

	beginErr  error
	commitErr error
	tx        *fakeTx
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.tx = &fakeTx{db: f}
	return f.tx, nil
}

// fakeTx forwards statements to its fakeDB and records how it ended.
// Methods the store does not call are left to the nil embedded pgx.Tx.
type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	return t.db.CopyFrom(ctx, table, cols, src)
}

func (t *fakeTx) Commit(context.Context) error {
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(args) > 0 {
		f.queryLimit = args[0]
	}
	return &fakeRows{rows: f.queryRows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return &fakeRows{idx: -1}
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copyTable = table
	f.copyCols = cols
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.copyRows = append(f.copyRows, vals)
	}
	return int64(len(f.copyRows)), src.Err()
}

// fakeRows implements pgx.Rows over in-memory values.
type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return pgx.ErrNoRows
	}
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, New(db).EnsureSchema(context.Background()))

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS conversion_runs")
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS conversion_row_errors")
}

func TestEnsureSchema_Error(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}
	err := New(db).EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRecordRun(t *testing.T) {
	db := &fakeDB{}
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{
		ID:         uuid.New(),
		Source:     "people.csv",
		Rows:       5,
		Accepted:   5,
		BytesRead:  42,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}

	require.NoError(t, New(db).RecordRun(context.Background(), run))
	require.Len(t, db.execs, 1)
	assert.True(t, strings.Contains(db.execs[0], "INSERT INTO conversion_runs"))

	args := db.execArgs[0]
	require.Len(t, args, 9)
	assert.Equal(t, pgtype.UUID{Bytes: run.ID, Valid: true}, args[0])
	assert.Equal(t, "people.csv", args[1])
	assert.Equal(t, pgtype.Text{}, args[2], "raw runs store a NULL schema")
	assert.Equal(t, time.Second, run.Duration())
}

func TestRecordRowErrors(t *testing.T) {
	db := &fakeDB{}
	runID := uuid.New()

	results, err := parser.ConvertValidatedReader(context.Background(),
		strings.NewReader("ok\nbad,row\nok\nworse"),
		parser.SchemaFunc[string](func(row parser.FieldRow) parser.Verdict[string] {
			if row[0] == "ok" {
				return parser.Accept(row[0])
			}
			return parser.Reject[string](parser.Issue{Kind: parser.IssueCustom, Message: "not ok"})
		}),
		parser.Options{})
	require.NoError(t, err)

	n, err := New(db).RecordRowErrors(context.Background(), runID, parser.Errors(results))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, pgx.Identifier{"conversion_row_errors"}, db.copyTable)
	assert.Equal(t, []string{"run_id", "row_index", "raw", "issues"}, db.copyCols)
	require.Len(t, db.copyRows, 2)

	first := db.copyRows[0]
	assert.Equal(t, pgtype.UUID{Bytes: runID, Valid: true}, first[0])
	assert.Equal(t, int32(1), first[1])
	assert.Equal(t, []string{"bad", "row"}, first[2])

	var issues []parser.Issue
	require.NoError(t, json.Unmarshal(first[3].([]byte), &issues))
	assert.Equal(t, "not ok", issues[0].Message)

	assert.Equal(t, int32(3), db.copyRows[1][1])
}

func TestRecordRowErrors_Empty(t *testing.T) {
	db := &fakeDB{copyErr: errors.New("must not be called")}
	n, err := New(db).RecordRowErrors(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecentRuns(t *testing.T) {
	id := uuid.New()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{queryRows: [][]any{{
		pgtype.UUID{Bytes: id, Valid: true},
		"students.csv",
		pgtype.Text{String: "students", Valid: true},
		int32(2),
		int32(1),
		int32(1),
		int64(30),
		pgtype.Timestamptz{Time: started, Valid: true},
		pgtype.Timestamptz{Time: started.Add(time.Millisecond), Valid: true},
	}}}

	runs, err := New(db).RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 20, db.queryLimit)

	require.Len(t, runs, 1)
	assert.Equal(t, Run{
		ID:         id,
		Source:     "students.csv",
		Schema:     "students",
		Rows:       2,
		Accepted:   1,
		Rejected:   1,
		BytesRead:  30,
		StartedAt:  started,
		FinishedAt: started.Add(time.Millisecond),
	}, runs[0])
}

func TestRecentRuns_QueryError(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("deadlock detected")}
	_, err := New(db).RecentRuns(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
}

func conversionFixture(t *testing.T) (Run, []*parser.SchemaError) {
	t.Helper()
	results, err := parser.ConvertValidatedReader(context.Background(),
		strings.NewReader("ok\nbad\n"),
		parser.SchemaFunc[string](func(row parser.FieldRow) parser.Verdict[string] {
			if row[0] == "bad" {
				return parser.Reject[string](parser.Issue{Kind: parser.IssueCustom, Message: "bad row"})
			}
			return parser.Accept(row[0])
		}),
		parser.Options{})
	require.NoError(t, err)

	now := time.Now()
	run := Run{ID: uuid.New(), Source: "in.csv", Rows: 2, Accepted: 1, Rejected: 1, StartedAt: now, FinishedAt: now}
	return run, parser.Errors(results)
}

func TestRecordConversion_Commits(t *testing.T) {
	run, errs := conversionFixture(t)
	db := &fakeDB{}

	n, err := New(db).RecordConversion(context.Background(), run, errs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NotNil(t, db.tx)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "INSERT INTO conversion_runs")
	assert.Len(t, db.copyRows, 1)
}

func TestRecordConversion_RollsBack(t *testing.T) {
	tests := []struct {
		name    string
		db      *fakeDB
		wantErr string
	}{
		{name: "insert fails", db: &fakeDB{execErr: errors.New("deadlock detected")}, wantErr: "deadlock detected"},
		{name: "copy fails", db: &fakeDB{copyErr: errors.New("copy failed")}, wantErr: "copy failed"},
		{name: "commit fails", db: &fakeDB{commitErr: errors.New("connection reset")}, wantErr: "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, errs := conversionFixture(t)

			_, err := New(tt.db).RecordConversion(context.Background(), run, errs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			require.NotNil(t, tt.db.tx)
			assert.False(t, tt.db.tx.committed)
			assert.True(t, tt.db.tx.rolledBack)
		})
	}
}

func TestRecordConversion_BeginFails(t *testing.T) {
	run, errs := conversionFixture(t)
	db := &fakeDB{beginErr: errors.New("connection refused")}

	_, err := New(db).RecordConversion(context.Background(), run, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.Empty(t, db.execs)
}
