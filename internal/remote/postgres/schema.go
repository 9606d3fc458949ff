package postgres

import (
	"context"
	"fmt"

	"github.com/teamcache/teamcache/internal/store"
)

// knownColumns is the identifier whitelist used when building statements.
// A remote may lack some of these; it must not be sent anything else.
var knownColumns = map[store.Table]map[string]bool{
	store.TableTeams: {
		"id": true, "owner_id": true, "name": true, "admin_email": true, "logo": true,
		"created_at": true, "last_backup_at": true, "is_yearly": true, "is_plus": true,
	},
	store.TableMembers: {
		"id": true, "team_id": true, "owner_id": true, "email": true, "phone": true,
		"telegram": true, "two_fa_secret": true, "password": true, "password2": true,
		"join_date": true, "is_paid": true, "paid_amount": true, "pending_amount": true,
		"subscriptions": true, "is_pushed": true, "active_team_id": true,
	},
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		admin_email TEXT NOT NULL DEFAULT '',
		logo TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		last_backup_at TIMESTAMP WITH TIME ZONE,
		is_yearly BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		team_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		telegram TEXT,
		two_fa_secret TEXT,
		password TEXT,
		password2 TEXT,
		join_date DATE,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		pending_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		subscriptions TEXT[] NOT NULL DEFAULT '{}',
		is_pushed BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_teams_owner ON teams(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_members_owner ON members(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_members_team ON members(team_id)`,

	// Added after the first deployments; older remotes may still lack them.
	`ALTER TABLE teams ADD COLUMN IF NOT EXISTS is_plus BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE members ADD COLUMN IF NOT EXISTS active_team_id TEXT`,
}

// Migrate creates the remote tables. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("remote migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
