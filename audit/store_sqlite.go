package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var _ Log = (*SQLiteLog)(nil)

// SQLiteLog appends entries to a SQLite table
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens (or creates) a SQLite-backed audit log.
func NewSQLiteLog(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id        TEXT PRIMARY KEY,
		action    TEXT NOT NULL,
		actor     TEXT,
		timestamp TEXT NOT NULL,
		details   TEXT
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(timestamp)`)

	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Append(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `INSERT INTO audit_log (id, action, actor, timestamp, details)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		string(entry.Action),
		entry.ActorIdentifier,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(details),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Count returns the number of stored entries with the given action
func (l *SQLiteLog) Count(ctx context.Context, action Action) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log WHERE action = ?`, string(action)).Scan(&n)
	return n, err
}

// Close releases the database handle
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
