// Package store keeps summaries of finished runs. Postgres is used when a
// database is configured, a local SQLite file when a history path is set;
// otherwise summaries live in a bounded in-memory list and disappear with
// the process.
package store

import (
	"context"
	"time"
)

// EntryStatus is the outcome of one rule in a run.
type EntryStatus struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Rows   int    `json:"rows,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// RunSummary describes one run. Data and results are never stored, only
// names and counts.
type RunSummary struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	DataFile   string        `json:"dataFile"`
	RulesFile  string        `json:"rulesFile"`
	Sheet      string        `json:"sheet,omitempty"`
	Mode       string        `json:"mode"`
	Entries    []EntryStatus `json:"entries,omitempty"`
	Sheets     int           `json:"sheets"`
	DurationMS int64         `json:"durationMs"`
	Error      string        `json:"error,omitempty"`
}

// Store records and lists run summaries.
type Store interface {
	// Record saves a summary. A store full of old runs drops the oldest.
	Record(ctx context.Context, run RunSummary) error

	// Recent returns up to limit summaries, newest first.
	Recent(ctx context.Context, limit int) ([]RunSummary, error)

	// Prune deletes summaries that started before cutoff and reports how
	// many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases any resources held by the store.
	Close()
}
