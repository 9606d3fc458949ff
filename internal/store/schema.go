package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many have
// run. Entries are append-only and must never drop existing rows.
var migrations = []string{
	// 1: base tables
	`
	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		admin_email TEXT NOT NULL DEFAULT '',
		logo TEXT,
		created_at TEXT NOT NULL,
		last_backup_at TEXT,
		is_yearly INTEGER NOT NULL DEFAULT 0
	);

	-- No foreign key to teams: orphaned members are kept for display.
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		team_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		telegram TEXT,
		two_fa_secret TEXT,
		password TEXT,
		password2 TEXT,
		join_date TEXT NOT NULL DEFAULT '',
		is_paid INTEGER NOT NULL DEFAULT 0,
		paid_amount REAL NOT NULL DEFAULT 0,
		pending_amount REAL NOT NULL DEFAULT 0,
		subscriptions TEXT NOT NULL DEFAULT '[]',  -- JSON array
		is_pushed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		operation TEXT NOT NULL,  -- insert, update, delete
		record_id TEXT NOT NULL,
		payload TEXT NOT NULL,    -- JSON, shape fixed by (table_name, operation)
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_teams_owner ON teams(owner_id);
	CREATE INDEX IF NOT EXISTS idx_members_owner ON members(owner_id);
	CREATE INDEX IF NOT EXISTS idx_members_team ON members(team_id);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_owner ON sync_queue(owner_id);
	`,

	// 2: plus plan flag and reassignment back-reference
	`
	ALTER TABLE teams ADD COLUMN is_plus INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE members ADD COLUMN active_team_id TEXT;
	`,
}

// SchemaVersion is the version a fully migrated database reports.
var SchemaVersion = len(migrations)

// migrate applies pending migrations. The version is read inside the write
// transaction so concurrent openers of the same file apply each step once.
func (s *Store) migrate(ctx context.Context) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		version, err := s.Version(ctx)
		if err != nil {
			return err
		}

		for i := version; i < len(migrations); i++ {
			if _, err := s.q(ctx).ExecContext(ctx, migrations[i]); err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
			if _, err := s.q(ctx).ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
				return fmt.Errorf("failed to record schema version %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// Version returns the applied schema version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	if err := s.q(ctx).QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
