// Package history keeps a SQLite ledger of deployment runs and the result
// of every page each run uploaded.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded deployment.
type Run struct {
	ID         string
	Owner      string
	Repo       string
	Ref        string
	Env        string
	Prefix     string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Error      string
	Pages      []Page
}

// Page is the recorded result of one upload.
type Page struct {
	Name    string
	ErrCode int
	ErrText string
	Status  string // uploaded | rejected | failed
}

// Store persists runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the ledger at dbPath. ":memory:" gives a
// throwaway database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		ref TEXT NOT NULL,
		env TEXT NOT NULL,
		prefix TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		page TEXT NOT NULL,
		errcode INTEGER NOT NULL,
		errtext TEXT,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pages_run_id ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run and its pages in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, owner, repo, ref, env, prefix, started_at, finished_at, outcome, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Owner, run.Repo, run.Ref, run.Env, run.Prefix,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Outcome, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range run.Pages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO pages (run_id, page, errcode, errtext, status) VALUES (?, ?, ?, ?, ?)",
			run.ID, p.Name, p.ErrCode, p.ErrText, p.Status,
		)
		if err != nil {
			return fmt.Errorf("insert page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their pages.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, owner, repo, ref, env, prefix, started_at, finished_at, outcome, COALESCE(error, '') FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Owner, &r.Repo, &r.Ref, &r.Env, &r.Prefix, &started, &finished, &r.Outcome, &r.Error); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		pages, err := s.pages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Pages = pages
	}
	return runs, nil
}

func (s *Store) pages(ctx context.Context, runID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT page, errcode, COALESCE(errtext, ''), status FROM pages WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.Name, &p.ErrCode, &p.ErrText, &p.Status); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return pages, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
