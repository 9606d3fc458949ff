package store

import (
	"context"
	"fmt"
	"time"
)

// ReplaceSnapshot overwrites the owner's teams and members with the given
// rows and records syncedAt as last_sync, all in one transaction. Either the
// whole snapshot becomes visible or none of it does.
func (s *Store) ReplaceSnapshot(ctx context.Context, ownerID string, teams []TeamRow, members []MemberRow, syncedAt time.Time) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM members WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("failed to clear members: %w", err)
		}
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM teams WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("failed to clear teams: %w", err)
		}

		for _, team := range teams {
			if err := s.PutTeam(ctx, team); err != nil {
				return err
			}
		}
		for _, m := range members {
			if err := s.PutMember(ctx, m); err != nil {
				return err
			}
		}

		return s.SetMeta(ctx, OwnerKey(MetaLastSync, ownerID), formatTime(syncedAt))
	})
}

// DeleteTeamCascade removes a team and all of its members atomically and
// returns the members that were removed.
func (s *Store) DeleteTeamCascade(ctx context.Context, teamID string) ([]MemberRow, error) {
	var removed []MemberRow
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		members, err := s.ListMembersByTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM members WHERE team_id = ?`, teamID); err != nil {
			return fmt.Errorf("failed to delete members of team %s: %w", teamID, err)
		}
		if err := s.DeleteTeam(ctx, teamID); err != nil {
			return err
		}
		removed = members
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
