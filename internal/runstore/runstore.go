// Package runstore keeps a SQLite registry of training runs and their
// evaluation metrics.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FileName is the default database file name.
const FileName = "runs.db"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	ID         string
	BaseModel  string
	Dataset    string
	OutputDir  string
	Args       json.RawMessage
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Evaluation is one row of the evaluations table.
type Evaluation struct {
	RunID    string
	Epoch    float64
	Step     int
	Split    string
	Loss     float64
	Accuracy float64
	Samples  int
	Recorded time.Time
}

// Store wraps the registry database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the registry at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run registry: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run registry: %w", err)
	}
	logf(path, "registry ready")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		base_model TEXT NOT NULL,
		dataset TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		args TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		epoch REAL NOT NULL,
		step INTEGER NOT NULL,
		split TEXT NOT NULL,
		loss REAL NOT NULL,
		accuracy REAL NOT NULL,
		samples INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) timestamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

// StartRun inserts a running run and returns it with a fresh id.
func (s *Store) StartRun(ctx context.Context, baseModel, dataset, outputDir string, args any) (*Run, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode run arguments: %w", err)
	}
	r := &Run{
		ID:        uuid.NewString(),
		BaseModel: baseModel,
		Dataset:   dataset,
		OutputDir: outputDir,
		Args:      raw,
		Status:    StatusRunning,
	}
	ts := s.timestamp()
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, ts)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, base_model, dataset, output_dir, args, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BaseModel, r.Dataset, r.OutputDir, string(raw), r.Status, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	logf(r.ID, "started (%s on %s)", baseModel, dataset)
	return r, nil
}

// RecordEval stores one evaluation for runID.
func (s *Store) RecordEval(ctx context.Context, e Evaluation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (run_id, epoch, step, split, loss, accuracy, samples, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Epoch, e.Step, e.Split, e.Loss, e.Accuracy, e.Samples, s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// FinishRun sets the final status. A non-nil runErr is stored as the error
// message; context.Canceled maps to StatusCancelled.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status, msg := StatusCompleted, ""
	switch {
	case errors.Is(runErr, context.Canceled):
		status, msg = StatusCancelled, runErr.Error()
	case runErr != nil:
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, nullString(msg), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", id, ErrRunNotFound)
	}
	logf(id, "finished (%s)", status)
	return nil
}

// ListRuns returns runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, base_model, dataset, output_dir, args, status, error, started_at, finished_at FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRun returns one run by id or by an unambiguous id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	const cols = `SELECT id, base_model, dataset, output_dir, args, status, error, started_at, finished_at FROM runs`
	r, err := scanRun(s.db.QueryRowContext(ctx, cols+` WHERE id = ?`, id))
	if err == nil || !errors.Is(err, sql.ErrNoRows) || id == "" {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
		}
		return r, err
	}

	rows, err := s.db.QueryContext(ctx, cols+` WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()
	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run prefix %s matches more than one run", id)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// Evaluations returns the evaluations of runID in recording order.
func (s *Store) Evaluations(ctx context.Context, runID string) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, epoch, step, split, loss, accuracy, samples, recorded_at FROM evaluations WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var e Evaluation
		var ts string
		if err := rows.Scan(&e.RunID, &e.Epoch, &e.Step, &e.Split, &e.Loss, &e.Accuracy, &e.Samples, &ts); err != nil {
			return nil, err
		}
		e.Recorded, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                Run
		args, started    string
		errMsg, finished sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.BaseModel, &r.Dataset, &r.OutputDir, &args, &r.Status, &errMsg, &started, &finished); err != nil {
		return nil, err
	}
	r.Args = json.RawMessage(args)
	r.Error = errMsg.String
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err == nil {
			r.FinishedAt = &t
		}
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
