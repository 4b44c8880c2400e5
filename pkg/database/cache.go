package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CacheStats counts the rows of a cache table
type CacheStats struct {
	Total   int64
	Valid   int64
	Expired int64
}

// Cache is a key/value table with per-entry expiry. Timestamps are stored as
// unix nanoseconds so expiry checks are plain integer comparisons.
type Cache struct {
	db        *Database
	tableName string
	now       func() time.Time
}

// NewCache creates a new cache instance backed by tableName
func NewCache(db *Database, tableName string) (*Cache, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("invalid cache table name %q", tableName)
	}
	return &Cache{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}, nil
}

// WithClock replaces the clock used for expiry
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Initialize creates the cache table if it doesn't exist
func (c *Cache) Initialize(ctx context.Context) error {
	return c.db.Migrate(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`, c.tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)`, c.tableName, c.tableName),
	)
}

// Get retrieves a value from the cache. Expired entries are reported as missing.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ? AND expires_at > ?`, c.tableName)

	var value string
	err := c.db.DB().QueryRowContext(ctx, query, key, c.now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cache value: %w", err)
	}

	return value, true, nil
}

// Has reports whether key holds an unexpired value
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

// Set stores a value in the cache
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.SetMany(ctx, map[string]string{key: value}, ttl)
}

// SetMany stores all values with the same ttl in one transaction
func (c *Cache) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}

	now := c.now()
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`, c.tableName)

	return c.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare cache insert: %w", err)
		}
		defer func() {
			if closeErr := stmt.Close(); closeErr != nil {
				slog.Error("Failed to close statement", "error", closeErr)
			}
		}()

		for key, value := range values {
			if _, err := stmt.ExecContext(ctx, key, value, now.Add(ttl).UnixNano(), now.UnixNano()); err != nil {
				return fmt.Errorf("failed to set cache value: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a value from the cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, c.tableName)

	if _, err := c.db.DB().ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete cache value: %w", err)
	}
	return nil
}

// Close closes the database the cache is stored in
func (c *Cache) Close() error {
	return c.db.Close()
}

// CleanupExpired removes expired entries from the cache
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, c.tableName)

	result, err := c.db.DB().ExecContext(ctx, query, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up expired cache entries", "table", c.tableName, "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Stats returns cache statistics
func (c *Cache) Stats(ctx context.Context) (CacheStats, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0)
		FROM %s`, c.tableName)

	var stats CacheStats
	if err := c.db.DB().QueryRowContext(ctx, query, c.now().UnixNano()).Scan(&stats.Total, &stats.Valid); err != nil {
		return CacheStats{}, fmt.Errorf("failed to get cache stats: %w", err)
	}
	stats.Expired = stats.Total - stats.Valid

	return stats, nil
}

// Clear removes all entries from the cache
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.DB().ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.tableName)); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
