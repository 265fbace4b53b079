// Package history persists search and transfer activity in SQLite so past
// submissions survive daemon restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists activity records backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database under dataDir and
// applies migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path reports the database file location.
func (s *Store) Path() string { return s.path }

// SearchRecord is one remembered search.
type SearchRecord struct {
	ID        int64
	Owner     string
	Query     string
	Kind      string
	Results   int
	CreatedAt time.Time
}

// TransferRecord is one remembered transfer submission.
type TransferRecord struct {
	ID           string
	Owner        string
	Title        string
	ResourceType string
	Backend      string
	Destination  string
	Degraded     bool
	Succeeded    bool
	Reason       string
	Message      string
	CreatedAt    time.Time
}

// Stats aggregates the stored activity.
type Stats struct {
	Searches           int64
	Transfers          int64
	TransfersSucceeded int64
	TransfersFailed    int64
}

// RecordSearch appends a search to the history.
func (s *Store) RecordSearch(ctx context.Context, owner, query, kind string, results int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (owner, query, kind, results, created_at) VALUES (?, ?, ?, ?, ?)`,
		owner, query, kind, results, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	return nil
}

// RecordTransfer appends a transfer outcome to the history. The record's
// CreatedAt is stamped here.
func (s *Store) RecordTransfer(ctx context.Context, rec TransferRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers (
            id, owner, title, resource_type, backend, destination,
            degraded, succeeded, reason, message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Owner,
		rec.Title,
		rec.ResourceType,
		rec.Backend,
		rec.Destination,
		boolToInt(rec.Degraded),
		boolToInt(rec.Succeeded),
		rec.Reason,
		rec.Message,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// RecentTransfers returns up to limit transfers, newest first.
func (s *Store) RecentTransfers(ctx context.Context, limit int) ([]TransferRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, title, resource_type, backend, destination,
                degraded, succeeded, reason, message, created_at
           FROM transfers ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var records []TransferRecord
	for rows.Next() {
		var rec TransferRecord
		var degraded, succeeded int
		var createdAt string
		if err := rows.Scan(
			&rec.ID, &rec.Owner, &rec.Title, &rec.ResourceType, &rec.Backend,
			&rec.Destination, &degraded, &succeeded, &rec.Reason, &rec.Message, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		rec.Degraded = degraded != 0
		rec.Succeeded = succeeded != 0
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return records, nil
}

// Stats summarises the stored activity.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM searches").Scan(&stats.Searches); err != nil {
		return Stats{}, fmt.Errorf("count searches: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(succeeded), 0),
                COALESCE(SUM(1 - succeeded), 0)
           FROM transfers`)
	if err := row.Scan(&stats.Transfers, &stats.TransfersSucceeded, &stats.TransfersFailed); err != nil {
		return Stats{}, fmt.Errorf("count transfers: %w", err)
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
