package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const teamColumns = `id, owner_id, name, admin_email, logo, created_at, last_backup_at, is_yearly, is_plus`

// PutTeam inserts or replaces a team keyed by id.
func (s *Store) PutTeam(ctx context.Context, team TeamRow) error {
	if team.ID == "" {
		return fmt.Errorf("team id is required")
	}

	query := `
	INSERT INTO teams (` + teamColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		name = excluded.name,
		admin_email = excluded.admin_email,
		logo = excluded.logo,
		created_at = excluded.created_at,
		last_backup_at = excluded.last_backup_at,
		is_yearly = excluded.is_yearly,
		is_plus = excluded.is_plus
	`

	_, err := s.q(ctx).ExecContext(ctx, query,
		team.ID,
		team.OwnerID,
		team.Name,
		team.AdminEmail,
		stringToNull(team.Logo),
		formatTime(team.CreatedAt),
		timeToNullString(team.LastBackupAt),
		team.IsYearly,
		team.IsPlus,
	)
	if err != nil {
		return fmt.Errorf("failed to put team %s: %w", team.ID, err)
	}
	return nil
}

// GetTeam returns the team with the given id or ErrNotFound.
func (s *Store) GetTeam(ctx context.Context, id string) (TeamRow, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	team, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TeamRow{}, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return TeamRow{}, fmt.Errorf("failed to get team %s: %w", id, err)
	}
	return team, nil
}

// DeleteTeam removes a team row. Members are untouched; see DeleteTeamCascade.
// Returns nil if the team doesn't exist.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete team %s: %w", id, err)
	}
	return nil
}

// ListTeamsByOwner returns the owner's teams, newest created first.
func (s *Store) ListTeamsByOwner(ctx context.Context, ownerID string) ([]TeamRow, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+teamColumns+`
		FROM teams
		WHERE owner_id = ?
		ORDER BY created_at DESC, id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []TeamRow
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}
	return teams, nil
}

// HasTeam reports whether ownerID has a team with the given id.
func (s *Store) HasTeam(ctx context.Context, ownerID, id string) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM teams WHERE id = ? AND owner_id = ?)`, id, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team %s: %w", id, err)
	}
	return exists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTeam(sc scanner) (TeamRow, error) {
	var team TeamRow
	var logo, lastBackup sql.NullString
	var createdAt string

	err := sc.Scan(
		&team.ID,
		&team.OwnerID,
		&team.Name,
		&team.AdminEmail,
		&logo,
		&createdAt,
		&lastBackup,
		&team.IsYearly,
		&team.IsPlus,
	)
	if err != nil {
		return TeamRow{}, err
	}

	team.Logo = nullToString(logo)
	team.CreatedAt = parseTime(createdAt)
	team.LastBackupAt = nullStringToTime(lastBackup)
	return team, nil
}
