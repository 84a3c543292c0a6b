// Package store handles SQLite persistence of pending reports.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/playbeacon/beacon/internal/report"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access to the pending-report queue.
type Store struct {
	db *sql.DB
}

// PendingReport is one queued payload awaiting delivery.
type PendingReport struct {
	ID         int64
	EnqueuedAt time.Time
	Payload    report.Payload
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_reports (
			id INTEGER PRIMARY KEY,
			enqueued_at TEXT NOT NULL,
			game_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_reports_enqueued_at ON pending_reports(enqueued_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue appends a payload to the queue.
func (s *Store) Enqueue(ctx context.Context, p report.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_reports (enqueued_at, game_id, session_id, payload) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		p.GameID,
		p.SessionID,
		string(body),
	)
	return err
}

// Drain reads every queued payload oldest-first and clears the queue in
// one transaction. Rows that no longer decode are skipped.
func (s *Store) Drain(ctx context.Context) ([]report.Payload, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	rows, err := tx.QueryContext(ctx, `SELECT payload FROM pending_reports ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	var pending []report.Payload
	for rows.Next() {
		var body string
		if err = rows.Scan(&body); err != nil {
			if cerr := rows.Close(); cerr != nil {
				// Best-effort rows close.
				_ = cerr
			}
			return nil, err
		}
		var p report.Payload
		if uerr := json.Unmarshal([]byte(body), &p); uerr != nil {
			continue
		}
		pending = append(pending, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM pending_reports`); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return pending, nil
}

// List returns the queued reports oldest-first without removing them.
// Undecodable rows are skipped.
func (s *Store) List(ctx context.Context) ([]PendingReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, enqueued_at, payload FROM pending_reports ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []PendingReport
	for rows.Next() {
		var entry PendingReport
		var enqueuedAt, body string
		if err := rows.Scan(&entry.ID, &enqueuedAt, &body); err != nil {
			return nil, err
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, enqueuedAt); perr == nil {
			entry.EnqueuedAt = parsed
		}
		if uerr := json.Unmarshal([]byte(body), &entry.Payload); uerr != nil {
			continue
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the number of queued reports.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_reports`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
