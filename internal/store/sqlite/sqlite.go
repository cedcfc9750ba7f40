// Package sqlite provides the default file-backed RecordStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

const schema = `
CREATE TABLE IF NOT EXISTS whitelist (
	user_id  TEXT PRIMARY KEY,
	added_by TEXT NOT NULL,
	notes    TEXT NOT NULL DEFAULT '',
	added_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS search_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        TEXT NOT NULL,
	username       TEXT NOT NULL,
	sites_checked  INTEGER NOT NULL,
	accounts_found INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	searched_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history(user_id);
`

// Store is the SQLite-backed RecordStore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database in dataDir and applies the schema.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "scoutbot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" errors under the
	// per-command read pattern.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddWhitelist inserts an entry. Returns false when the user was already
// listed; the existing row is left untouched.
func (s *Store) AddWhitelist(ctx context.Context, entry scout.WhitelistEntry) (bool, error) {
	addedAt := entry.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO whitelist (user_id, added_by, notes, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		entry.UserID, entry.AddedBy, entry.Notes, addedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert whitelist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert whitelist entry: %w", err)
	}
	return n > 0, nil
}

// RemoveWhitelist deletes an entry. Returns false when the user was not listed.
func (s *Store) RemoveWhitelist(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM whitelist WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete whitelist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete whitelist entry: %w", err)
	}
	return n > 0, nil
}

// IsWhitelisted reports whether the user is currently listed.
func (s *Store) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM whitelist WHERE user_id = ?`, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query whitelist: %w", err)
	}
	return true, nil
}

// ListWhitelist returns all entries ordered by when they were added.
func (s *Store) ListWhitelist(ctx context.Context) ([]scout.WhitelistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, added_by, notes, added_at
		FROM whitelist
		ORDER BY added_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("query whitelist: %w", err)
	}
	defer rows.Close()

	var out []scout.WhitelistEntry
	for rows.Next() {
		var entry scout.WhitelistEntry
		if err := rows.Scan(&entry.UserID, &entry.AddedBy, &entry.Notes, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("scan whitelist row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whitelist rows: %w", err)
	}
	return out, nil
}

// GetSetting returns the value for key and whether it was present.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores or overwrites a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting. Returns false when the key was absent.
func (s *Store) DeleteSetting(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete setting %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete setting %q: %w", key, err)
	}
	return n > 0, nil
}

// AllSettings returns every stored setting.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setting rows: %w", err)
	}
	return out, nil
}

// RecordSearch appends a history row.
func (s *Store) RecordSearch(ctx context.Context, rec scout.SearchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (user_id, username, sites_checked, accounts_found, duration_ms, searched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.SitesChecked, rec.AccountsFound,
		rec.Duration.Milliseconds(), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert search record: %w", err)
	}
	return nil
}
