package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const memberColumns = `id, team_id, owner_id, email, phone, telegram, two_fa_secret, password, password2,
	join_date, is_paid, paid_amount, pending_amount, subscriptions, is_pushed, active_team_id`

// PutMember inserts or replaces a member keyed by id.
func (s *Store) PutMember(ctx context.Context, m MemberRow) error {
	if m.ID == "" {
		return fmt.Errorf("member id is required")
	}
	if m.TeamID == "" {
		return fmt.Errorf("member %s: team id is required", m.ID)
	}

	subsJSON, err := json.Marshal(nonNil(m.Subscriptions))
	if err != nil {
		return fmt.Errorf("failed to marshal subscriptions: %w", err)
	}

	query := `
	INSERT INTO members (` + memberColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		team_id = excluded.team_id,
		owner_id = excluded.owner_id,
		email = excluded.email,
		phone = excluded.phone,
		telegram = excluded.telegram,
		two_fa_secret = excluded.two_fa_secret,
		password = excluded.password,
		password2 = excluded.password2,
		join_date = excluded.join_date,
		is_paid = excluded.is_paid,
		paid_amount = excluded.paid_amount,
		pending_amount = excluded.pending_amount,
		subscriptions = excluded.subscriptions,
		is_pushed = excluded.is_pushed,
		active_team_id = excluded.active_team_id
	`

	_, err = s.q(ctx).ExecContext(ctx, query,
		m.ID,
		m.TeamID,
		m.OwnerID,
		m.Email,
		m.Phone,
		stringToNull(m.Telegram),
		stringToNull(m.TwoFASecret),
		stringToNull(m.Password),
		stringToNull(m.Password2),
		m.JoinDate,
		m.IsPaid,
		m.PaidAmount,
		m.PendingAmount,
		string(subsJSON),
		m.IsPushed,
		stringToNull(m.ActiveTeamID),
	)
	if err != nil {
		return fmt.Errorf("failed to put member %s: %w", m.ID, err)
	}
	return nil
}

// GetMember returns the member with the given id or ErrNotFound.
func (s *Store) GetMember(ctx context.Context, id string) (MemberRow, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MemberRow{}, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return MemberRow{}, fmt.Errorf("failed to get member %s: %w", id, err)
	}
	return m, nil
}

// DeleteMember removes a member. Returns nil if it doesn't exist.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete member %s: %w", id, err)
	}
	return nil
}

// ListMembersByOwner returns every member for ownerID.
func (s *Store) ListMembersByOwner(ctx context.Context, ownerID string) ([]MemberRow, error) {
	return s.listMembers(ctx, `owner_id = ?`, ownerID)
}

// ListMembersByTeam returns the members whose team_id is teamID.
func (s *Store) ListMembersByTeam(ctx context.Context, teamID string) ([]MemberRow, error) {
	return s.listMembers(ctx, `team_id = ?`, teamID)
}

func (s *Store) listMembers(ctx context.Context, where string, arg string) ([]MemberRow, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE `+where+`
		ORDER BY join_date ASC, id ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberRow
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func scanMember(sc scanner) (MemberRow, error) {
	var m MemberRow
	var telegram, secret, password, password2, activeTeam sql.NullString
	var subsJSON string

	err := sc.Scan(
		&m.ID,
		&m.TeamID,
		&m.OwnerID,
		&m.Email,
		&m.Phone,
		&telegram,
		&secret,
		&password,
		&password2,
		&m.JoinDate,
		&m.IsPaid,
		&m.PaidAmount,
		&m.PendingAmount,
		&subsJSON,
		&m.IsPushed,
		&activeTeam,
	)
	if err != nil {
		return MemberRow{}, err
	}

	m.Telegram = nullToString(telegram)
	m.TwoFASecret = nullToString(secret)
	m.Password = nullToString(password)
	m.Password2 = nullToString(password2)
	m.ActiveTeamID = nullToString(activeTeam)

	m.Subscriptions = []string{}
	if subsJSON != "" && subsJSON != "null" {
		if err := json.Unmarshal([]byte(subsJSON), &m.Subscriptions); err != nil {
			return MemberRow{}, fmt.Errorf("failed to unmarshal subscriptions: %w", err)
		}
	}
	return m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
