package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// LibSQLRecorder implements RunRecorder using libSQL (embedded SQLite fork).
type LibSQLRecorder struct {
	db *sql.DB
}

// NewLibSQLRecorder opens a libSQL database at the given path and applies
// pending migrations. The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLRecorder(ctx context.Context, dbPath string) (*LibSQLRecorder, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &LibSQLRecorder{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (r *LibSQLRecorder) DB() *sql.DB { return r.db }

// Close closes the database.
func (r *LibSQLRecorder) Close() error { return r.db.Close() }

func (r *LibSQLRecorder) RunStarted(ctx context.Context, rec *RunRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline_version, execution_mode, status, input, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, nullStr(rec.PipelineVersion), nullStr(rec.ExecutionMode),
		rec.Status, nullRaw(rec.Input), timeOrNow(rec.StartedAt),
	)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "insert run").WithCause(err)
	}
	return nil
}

func (r *LibSQLRecorder) PhaseFinished(ctx context.Context, event *PhaseEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO phase_events (run_id, phase_id, status, output, error, duration_ms, sequence, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.PhaseID, event.Status, nullRaw(event.Output),
		nullStr(event.Error), event.DurationMs, event.Sequence, timeOrNow(event.Timestamp),
	)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "insert phase event").WithCause(err)
	}
	return nil
}

func (r *LibSQLRecorder) RunFinished(ctx context.Context, runID, status string, synthesis json.RawMessage, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, synthesis = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, nullRaw(synthesis), nullStr(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "update run").WithCause(err)
	}
	return checkRowsAffected(res, "run", runID)
}

func (r *LibSQLRecorder) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rec := &RunRecord{}
	var (
		version, mode, input, synthesis, errMsg sql.NullString
		completedAt                             sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, pipeline_version, execution_mode, status, input, synthesis, error, started_at, completed_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&rec.ID, &version, &mode, &rec.Status, &input, &synthesis, &errMsg, &rec.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	rec.PipelineVersion = version.String
	rec.ExecutionMode = mode.String
	rec.Input = rawOrNil(input)
	rec.Synthesis = rawOrNil(synthesis)
	rec.Error = errMsg.String
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return rec, nil
}

func (r *LibSQLRecorder) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pipeline_version, execution_mode, status, input, synthesis, error, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var (
			version, mode, input, synthesis, errMsg sql.NullString
			completedAt                             sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &version, &mode, &rec.Status, &input, &synthesis, &errMsg, &rec.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		rec.PipelineVersion = version.String
		rec.ExecutionMode = mode.String
		rec.Input = rawOrNil(input)
		rec.Synthesis = rawOrNil(synthesis)
		rec.Error = errMsg.String
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *LibSQLRecorder) ListPhaseEvents(ctx context.Context, runID string) ([]*PhaseEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, phase_id, status, output, error, duration_ms, sequence, timestamp
		 FROM phase_events WHERE run_id = ? ORDER BY sequence ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PhaseEvent
	for rows.Next() {
		ev := &PhaseEvent{}
		var output, errMsg sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&ev.RunID, &ev.PhaseID, &ev.Status, &output, &errMsg, &duration, &ev.Sequence, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Output = rawOrNil(output)
		ev.Error = errMsg.String
		ev.DurationMs = duration.Int64
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ RunRecorder = (*LibSQLRecorder)(nil)

// --- Helpers ---

func storeNotFound(resource, id string) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
