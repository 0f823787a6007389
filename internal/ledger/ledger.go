// Package ledger is the durable record of (listing, query) pairs that
// have already produced a notification. Once a pair is in the ledger it
// is never notified again; the set only grows.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger wraps a SQLite database holding notified pair-keys.
type Ledger struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS notified (
	listing_url TEXT NOT NULL,
	query_text  TEXT NOT NULL,
	notified_at TEXT NOT NULL,
	PRIMARY KEY (listing_url, query_text)
)`

// Open creates or opens the ledger database at the given path.
func Open(dbPath string) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	return &Ledger{conn: conn}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Contains reports whether the pair has already been notified.
func (l *Ledger) Contains(listingURL, queryText string) (bool, error) {
	var n int
	err := l.conn.QueryRow(
		"SELECT COUNT(*) FROM notified WHERE listing_url = ? AND query_text = ?",
		listingURL, queryText,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return n > 0, nil
}

// Insert records the pair as notified. Returns false when the pair was
// already present. The INSERT OR IGNORE makes the membership test and
// the write a single atomic statement, so a crash can never leave a
// half-recorded pair.
func (l *Ledger) Insert(listingURL, queryText string) (bool, error) {
	res, err := l.conn.Exec(
		"INSERT OR IGNORE INTO notified (listing_url, query_text, notified_at) VALUES (?, ?, ?)",
		listingURL, queryText, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("inserting into ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking ledger insert: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of recorded pairs.
func (l *Ledger) Count() (int, error) {
	var n int
	if err := l.conn.QueryRow("SELECT COUNT(*) FROM notified").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ledger entries: %w", err)
	}
	return n, nil
}
