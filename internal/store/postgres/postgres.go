// Package postgres provides the Postgres-backed RecordStore for shared
// deployments where several bot instances use one database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is the Postgres-backed RecordStore.
type Store struct {
	pool querier
}

// New creates a Postgres-backed Store using the provided config. The schema
// is managed externally; see deploy/schema.sql.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// AddWhitelist inserts an entry. Returns false when the user was already listed.
func (s *Store) AddWhitelist(ctx context.Context, entry scout.WhitelistEntry) (bool, error) {
	addedAt := entry.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO whitelist (user_id, added_by, notes, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`,
		entry.UserID, entry.AddedBy, entry.Notes, addedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert whitelist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveWhitelist deletes an entry. Returns false when the user was not listed.
func (s *Store) RemoveWhitelist(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM whitelist WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete whitelist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsWhitelisted reports whether the user is currently listed.
func (s *Store) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM whitelist WHERE user_id = $1`, userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query whitelist: %w", err)
	}
	return true, nil
}

// ListWhitelist returns all entries ordered by when they were added.
func (s *Store) ListWhitelist(ctx context.Context) ([]scout.WhitelistEntry, error) {
	rows, err := s.pool.Query(ctx, `
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
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores or overwrites a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting. Returns false when the key was absent.
func (s *Store) DeleteSetting(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete setting %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// AllSettings returns every stored setting.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO search_history (user_id, username, sites_checked, accounts_found, duration_ms, searched_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.UserID, rec.Username, rec.SitesChecked, rec.AccountsFound,
		rec.Duration.Milliseconds(), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert search record: %w", err)
	}
	return nil
}
