// Package history keeps finished runs in SQLite so trends and flaky tests
// can be inspected across runs.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/suiterun/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored run.
type RunRecord struct {
	RunID       string
	SuiteName   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	SuccessRate float64
	ReportPath  string
}

// OutcomeRecord is a stored outcome together with its run.
type OutcomeRecord struct {
	RunID string
	models.TestOutcome
}

// FlakyTest is a test that both passed and failed within the inspected runs.
type FlakyTest struct {
	TestID string
	Name   string
	Passed int
	Failed int
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (and creates) the database at dbPath. ":memory:" is allowed.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries statements that hit "database is locked" with
// exponential backoff.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a summary and its outcomes in one transaction.
func (s *Store) RecordRun(ctx context.Context, summary models.RunSummary) error {
	if summary.RunID == "" {
		return errors.New("run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, suite_name, started_at, finished_at, duration_ms, total, passed, failed, skipped, success_rate, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.SuiteName,
		summary.StartedAt.UnixMilli(), summary.FinishedAt.UnixMilli(), summary.Duration.Milliseconds(),
		summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.SuccessRate(), summary.ReportPath)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO outcomes
		(run_id, test_id, name, status, started_at, duration_ms, error, screenshot, attempts, worker_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range summary.Outcomes {
		_, err := stmt.ExecContext(ctx, summary.RunID, o.TestID, o.Name, string(o.Status),
			o.StartedAt.UnixMilli(), o.Duration.Milliseconds(), o.Error, o.Screenshot, o.Attempts, o.WorkerID)
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.TestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, suite_name, started_at, finished_at, duration_ms, total, passed, failed, skipped, success_rate, report_path`

func scanRun(row interface{ Scan(...interface{}) error }) (RunRecord, error) {
	var r RunRecord
	var started, finished, durMs int64
	err := row.Scan(&r.RunID, &r.SuiteName, &started, &finished, &durMs,
		&r.Total, &r.Passed, &r.Failed, &r.Skipped, &r.SuccessRate, &r.ReportPath)
	if err != nil {
		return r, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	r.Duration = time.Duration(durMs) * time.Millisecond
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its outcomes in insertion order.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, []models.TestOutcome, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query run: %w", err)
	}

	records, err := s.queryOutcomes(ctx, `WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, nil, err
	}
	outcomes := make([]models.TestOutcome, 0, len(records))
	for _, r := range records {
		outcomes = append(outcomes, r.TestOutcome)
	}
	return &run, outcomes, nil
}

// TestHistory returns the latest outcomes of one test, newest first.
func (s *Store) TestHistory(ctx context.Context, testID string, limit int) ([]OutcomeRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryOutcomes(ctx, `WHERE test_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`, testID, limit)
}

func (s *Store) queryOutcomes(ctx context.Context, where string, args ...interface{}) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, test_id, name, status, started_at, duration_ms,
		error, screenshot, attempts, worker_id FROM outcomes `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var r OutcomeRecord
		var status string
		var started, durMs int64
		if err := rows.Scan(&r.RunID, &r.TestID, &r.Name, &status, &started, &durMs,
			&r.Error, &r.Screenshot, &r.Attempts, &r.WorkerID); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.Status = models.Status(status)
		r.StartedAt = time.UnixMilli(started)
		r.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// FlakyTests lists tests that both passed and failed within the last
// lastRuns runs, most failures first.
func (s *Store) FlakyTests(ctx context.Context, lastRuns int) ([]FlakyTest, error) {
	if lastRuns <= 0 {
		lastRuns = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.test_id, MAX(o.name),
			SUM(CASE WHEN o.status = 'PASSED' THEN 1 ELSE 0 END) AS passed,
			SUM(CASE WHEN o.status = 'FAILED' THEN 1 ELSE 0 END) AS failed
		FROM outcomes o
		WHERE o.run_id IN (SELECT run_id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)
		GROUP BY o.test_id
		HAVING passed > 0 AND failed > 0
		ORDER BY failed DESC, o.test_id`, lastRuns)
	if err != nil {
		return nil, fmt.Errorf("query flaky tests: %w", err)
	}
	defer rows.Close()

	var flaky []FlakyTest
	for rows.Next() {
		var f FlakyTest
		if err := rows.Scan(&f.TestID, &f.Name, &f.Passed, &f.Failed); err != nil {
			return nil, fmt.Errorf("scan flaky test: %w", err)
		}
		flaky = append(flaky, f)
	}
	return flaky, rows.Err()
}

// Prune keeps the newest keep runs and deletes the rest with their
// outcomes. It returns the number of runs removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const keepSet = `(SELECT run_id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE run_id NOT IN `+keepSet, keep); err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id NOT IN `+keepSet, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}
