package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"phieu/internal/config"
)

// Status is the terminal state of a run row.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one persisted pipeline run.
type Run struct {
	ID           string
	RecordID     string
	Status       Status
	Stage        string
	ErrorMessage string
	WarningCount int
	OutputFile   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    record_id TEXT NOT NULL,
    status TEXT NOT NULL,
    stage TEXT,
    error_message TEXT,
    warning_count INTEGER NOT NULL DEFAULT 0,
    output_file TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_record_id ON runs(record_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run-history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "runs.db"))
}

// OpenPath connects to the run-history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Create inserts a new running row for a run that just started.
func (s *Store) Create(ctx context.Context, runID, recordID string, startedAt time.Time) error {
	timestamp := startedAt.UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, record_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID,
		recordID,
		StatusRunning,
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordStage notes the stage a run has entered.
func (s *Store) RecordStage(ctx context.Context, runID, stage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET stage = ?, updated_at = ? WHERE id = ?`,
		stage,
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("record stage: %w", err)
	}
	return nil
}

// FinishSuccess marks a run succeeded with its artifact name.
func (s *Store) FinishSuccess(ctx context.Context, runID, outputFile string, warnings int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs
         SET status = ?, output_file = ?, warning_count = ?, updated_at = ?
         WHERE id = ?`,
		StatusSucceeded,
		nullableString(outputFile),
		warnings,
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// FinishFailure marks a run failed at a stage with the error it died on.
func (s *Store) FinishFailure(ctx context.Context, runID, stage, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs
         SET status = ?, stage = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		stage,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Get fetches one run by identifier, nil when absent.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
