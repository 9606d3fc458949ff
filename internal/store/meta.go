package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Well-known meta keys. Each is stored per owner under OwnerKey.
const (
	MetaLastSync     = "last_sync"
	MetaActiveTeamID = "active_team_id"
	MetaNotepads     = "notepads"
)

// OwnerKey scopes a well-known meta key to ownerID.
func OwnerKey(key, ownerID string) string {
	return key + ":" + ownerID
}

// GetMeta returns the value stored under key and whether it exists.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.q(ctx).QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores value under key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// DeleteMeta removes key. Returns nil if it doesn't exist.
func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete meta %s: %w", key, err)
	}
	return nil
}

// LastSync returns the time of the owner's last successful pull, or nil if
// none.
func (s *Store) LastSync(ctx context.Context, ownerID string) (*time.Time, error) {
	value, ok, err := s.GetMeta(ctx, OwnerKey(MetaLastSync, ownerID))
	if err != nil || !ok {
		return nil, err
	}
	t := parseTime(value)
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}
