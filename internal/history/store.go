// Package history keeps a per-project SQLite record of runs and iterations.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the database file inside a project directory
const FileName = "history.db"

// Run is one invocation of the loop controller
type Run struct {
	RunID         string    `json:"run_id"`
	Agent         string    `json:"agent"`
	MaxIterations int       `json:"max_iterations"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Outcome       string    `json:"outcome"`
	Message       string    `json:"message"`
}

// Iteration is one executor invocation
type Iteration struct {
	ID            int64
	RunID         string
	Iteration     int
	Phase         string
	PhaseAfter    string
	ExitCode      int
	Category      string // failure category, empty on success
	Action        string // backoff action, empty on success
	Delay         time.Duration
	Verdict       string
	Analyzed      int
	AnalyzedDelta int
	Duration      time.Duration
	Excerpt       string
	StartedAt     time.Time
}

// Store manages the SQLite history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the history database at dbPath
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
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// OpenForProject opens the history database of a project directory
func OpenForProject(projectDir string) (*Store, error) {
	return Open(filepath.Join(projectDir, FileName))
}

// Path returns the database path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StartRun records the beginning of a run
func (s *Store) StartRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, agent, max_iterations, started_at) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Agent, run.MaxIterations, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records how a run ended
func (s *Store) FinishRun(ctx context.Context, runID, outcome, message string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, outcome = ?, message = ? WHERE run_id = ?`,
		formatTime(endedAt), outcome, message, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Record stores one iteration
func (s *Store) Record(ctx context.Context, it Iteration) error {
	query := `INSERT INTO iterations
		(run_id, iteration, phase, phase_after, exit_code, category, action, delay_ms, verdict, analyzed, analyzed_delta, duration_ms, excerpt, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		it.RunID,
		it.Iteration,
		it.Phase,
		it.PhaseAfter,
		it.ExitCode,
		it.Category,
		it.Action,
		it.Delay.Milliseconds(),
		it.Verdict,
		it.Analyzed,
		it.AnalyzedDelta,
		it.Duration.Milliseconds(),
		it.Excerpt,
		formatTime(it.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert iteration: %w", err)
	}
	return nil
}

// Recent returns the most recent iterations across runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Iteration, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, iteration, phase, phase_after, exit_code, category, action, delay_ms, verdict,
			analyzed, analyzed_delta, duration_ms, excerpt, started_at
		FROM iterations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var it Iteration
		var delayMs, durationMs int64
		var startedAt string
		if err := rows.Scan(&it.ID, &it.RunID, &it.Iteration, &it.Phase, &it.PhaseAfter, &it.ExitCode,
			&it.Category, &it.Action, &delayMs, &it.Verdict, &it.Analyzed, &it.AnalyzedDelta,
			&durationMs, &it.Excerpt, &startedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		it.Delay = time.Duration(delayMs) * time.Millisecond
		it.Duration = time.Duration(durationMs) * time.Millisecond
		it.StartedAt = parseTime(startedAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

// Runs returns the most recent runs, newest first
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, agent, max_iterations, started_at, ended_at, outcome, message
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, ended string
		if err := rows.Scan(&r.RunID, &r.Agent, &r.MaxIterations, &started, &ended, &r.Outcome, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.EndedAt = parseTime(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CategoryCounts tallies failure categories over all recorded iterations
func (s *Store) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM iterations WHERE category != '' GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		counts[strings.TrimSpace(category)] = n
	}
	return counts, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
