package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/researchwiseai/pulse-go/internal/logging"
)

// CacheFileName is the database file created inside a cache directory.
const CacheFileName = "pulse-cache.db"

// SQLiteCache implements Cache using SQLite.
type SQLiteCache struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteCache opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests). A nil logger
// drops log output.
func NewSQLiteCache(dbPath string, logger *slog.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteCache{
		db:     db,
		logger: logger.With("component", "cache", "backend", "sqlite"),
	}, nil
}

// OpenCacheDir opens the cache database inside dir, creating the directory
// and schema as needed.
func OpenCacheDir(ctx context.Context, dir string, logger *slog.Logger) (*SQLiteCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c, err := NewSQLiteCache(filepath.Join(dir, CacheFileName), logger)
	if err != nil {
		return nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return c, nil
}

// Migrate creates all required tables and indexes.
func (c *SQLiteCache) Migrate(ctx context.Context) error {
	c.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, c.db)
}

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.logger.Debug("sql", "op", "select", "table", "results", "key", key)

	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM results WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, `UPDATE results SET accessed_at = ? WHERE key = ?`, now(), key); err != nil {
		return nil, false, fmt.Errorf("touch cache entry: %w", err)
	}
	return value, true, nil
}

// Set implements Cache.
func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte) error {
	c.logger.Debug("sql", "op", "upsert", "table", "results", "key", key, "bytes", len(value))

	ts := now()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO results (key, value, created_at, accessed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at, accessed_at = excluded.accessed_at`,
		key, value, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Clear implements Cache.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	c.logger.Debug("sql", "op", "delete", "table", "results")
	if _, err := c.db.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Prune removes entries not read or written since before. It returns the
// number of entries removed.
func (c *SQLiteCache) Prune(ctx context.Context, before time.Time) (int64, error) {
	c.logger.Debug("sql", "op", "delete", "table", "results", "before", before)
	res, err := c.db.ExecContext(ctx, `DELETE FROM results WHERE accessed_at < ?`, before.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached entries.
func (c *SQLiteCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

// timeFormat is fixed-width so stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(timeFormat)
}
