package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the cache tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS results (
		key         TEXT PRIMARY KEY,
		value       BLOB NOT NULL,
		created_at  TEXT NOT NULL,
		accessed_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_results_accessed_at ON results(accessed_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
