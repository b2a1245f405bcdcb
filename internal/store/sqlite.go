package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createSQLiteRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	data_file   TEXT NOT NULL,
	rules_file  TEXT NOT NULL,
	sheet       TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL,
	entries     TEXT NOT NULL DEFAULT '[]',
	sheets      INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// SQLite is a Store kept in a local database file. It lets the command line
// keep history between invocations without a database server.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite creates or opens the history database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createSQLiteRunsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Record implements Store.
func (s *SQLite) Record(ctx context.Context, run RunSummary) error {
	entries := run.Entries
	if entries == nil {
		entries = []EntryStatus{}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs
			(id, started_at, data_file, rules_file, sheet, mode, entries, sheets, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.DataFile, run.RulesFile, run.Sheet, run.Mode,
		string(entriesJSON), run.Sheets, run.DurationMS, run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Recent implements Store.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, data_file, rules_file, sheet, mode, entries, sheets, duration_ms, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			startedAt int64
			entries   string
		)
		if err := rows.Scan(&r.ID, &startedAt, &r.DataFile, &r.RulesFile, &r.Sheet, &r.Mode,
			&entries, &r.Sheets, &r.DurationMS, &r.Error); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt).UTC()
		if err := json.Unmarshal([]byte(entries), &r.Entries); err != nil {
			return nil, fmt.Errorf("decode entries of run %s: %w", r.ID, err)
		}
		if len(r.Entries) == 0 {
			r.Entries = nil
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Prune implements Store.
func (s *SQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Close implements Store.
func (s *SQLite) Close() {
	s.db.Close()
}
