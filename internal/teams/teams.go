// Package teams is the local-first write path for teams and members.
//
// Every mutation updates the local store and appends the matching sync
// queue entry in one transaction, so a row is never visible locally without
// the entry that will replay it, and vice versa. Mutations never touch the
// network; the sync engine picks the entries up later.
package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/mapper"
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
)

var (
	// ErrOrphanMember is returned when a member would reference a team the
	// owner does not have locally.
	ErrOrphanMember = errors.New("member references unknown team")

	// ErrNotFound is returned for ids the owner does not have.
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned for entities missing required fields.
	ErrInvalid = errors.New("invalid entity")

	// ErrExists is returned when a create names an id already stored,
	// whichever owner holds it.
	ErrExists = errors.New("already exists")
)

// Service performs local mutations.
type Service struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Service. If logger is nil, logging is disabled.
func New(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// CreateTeam stores a new team and queues its insert. An empty ID is
// assigned; a zero CreatedAt becomes now. A supplied ID that is already
// stored fails with ErrExists.
func (s *Service) CreateTeam(ctx context.Context, ownerID string, t model.Team) (model.Team, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return model.Team{}, fmt.Errorf("team name is required: %w", ErrInvalid)
	}
	if t.ID == "" {
		t.ID = s.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.OwnerID = ownerID

	row := mapper.TeamFromApp(t)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetTeam(ctx, row.ID); err == nil {
			return fmt.Errorf("team %s: %w", row.ID, ErrExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := s.store.PutTeam(ctx, row); err != nil {
			return err
		}
		_, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, row.ID, store.TeamInsert{Team: row}))
		return err
	})
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to create team: %w", err)
	}

	s.logger.Debug("team created", zap.String("owner", ownerID), zap.String("record_id", row.ID))
	return mapper.TeamToApp(row), nil
}

// UpdateTeam overwrites an existing team and queues the change. CreatedAt
// and OwnerID are kept from the stored row.
func (s *Service) UpdateTeam(ctx context.Context, ownerID string, t model.Team) (model.Team, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return model.Team{}, fmt.Errorf("team name is required: %w", ErrInvalid)
	}

	var row store.TeamRow
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.ownedTeam(ctx, ownerID, t.ID)
		if err != nil {
			return err
		}
		t.OwnerID = existing.OwnerID
		t.CreatedAt = existing.CreatedAt
		row = mapper.TeamFromApp(t)
		return s.putTeamUpdate(ctx, ownerID, row)
	})
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to update team %s: %w", t.ID, err)
	}
	return mapper.TeamToApp(row), nil
}

// MarkBackedUp records at as the team's last backup time.
func (s *Service) MarkBackedUp(ctx context.Context, ownerID, teamID string, at time.Time) (model.Team, error) {
	var row store.TeamRow
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.ownedTeam(ctx, ownerID, teamID)
		if err != nil {
			return err
		}
		at = at.UTC()
		existing.LastBackupAt = &at
		row = existing
		return s.putTeamUpdate(ctx, ownerID, row)
	})
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to mark team %s backed up: %w", teamID, err)
	}
	return mapper.TeamToApp(row), nil
}

func (s *Service) putTeamUpdate(ctx context.Context, ownerID string, row store.TeamRow) error {
	if err := s.store.PutTeam(ctx, row); err != nil {
		return err
	}
	_, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, row.ID, store.TeamUpdate{Team: row}))
	return err
}

// DeleteTeam removes a team with all of its members. A delete is queued for
// every member first, then for the team.
func (s *Service) DeleteTeam(ctx context.Context, ownerID, teamID string) error {
	var removed []store.MemberRow
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.ownedTeam(ctx, ownerID, teamID); err != nil {
			return err
		}

		var err error
		removed, err = s.store.DeleteTeamCascade(ctx, teamID)
		if err != nil {
			return err
		}
		for _, m := range removed {
			entry := store.NewQueueEntry(ownerID, m.ID, store.MemberDelete{TeamID: teamID})
			if _, err := s.store.AppendQueue(ctx, entry); err != nil {
				return err
			}
		}
		if _, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, teamID, store.TeamDelete{})); err != nil {
			return err
		}

		key := store.OwnerKey(store.MetaActiveTeamID, ownerID)
		active, ok, err := s.store.GetMeta(ctx, key)
		if err != nil {
			return err
		}
		if ok && active == teamID {
			return s.store.DeleteMeta(ctx, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete team %s: %w", teamID, err)
	}

	s.logger.Debug("team deleted",
		zap.String("owner", ownerID), zap.String("record_id", teamID), zap.Int("members", len(removed)))
	return nil
}

// GetTeam returns one of the owner's teams.
func (s *Service) GetTeam(ctx context.Context, ownerID, teamID string) (model.Team, error) {
	row, err := s.ownedTeam(ctx, ownerID, teamID)
	if err != nil {
		return model.Team{}, err
	}
	return mapper.TeamToApp(row), nil
}

// ListTeams returns the owner's teams, newest first.
func (s *Service) ListTeams(ctx context.Context, ownerID string) ([]model.Team, error) {
	rows, err := s.store.ListTeamsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return mapper.TeamsToApp(rows), nil
}

// Snapshot returns everything the owner has locally.
func (s *Service) Snapshot(ctx context.Context, ownerID string) (*model.Snapshot, error) {
	teams, err := s.store.ListTeamsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembersByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{Teams: mapper.TeamsToApp(teams), Members: mapper.MembersToApp(members)}, nil
}

// SetActiveTeam records teamID as the selected team.
func (s *Service) SetActiveTeam(ctx context.Context, ownerID, teamID string) error {
	return s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.ownedTeam(ctx, ownerID, teamID); err != nil {
			return err
		}
		return s.store.SetMeta(ctx, store.OwnerKey(store.MetaActiveTeamID, ownerID), teamID)
	})
}

// ActiveTeam returns the owner's selected team id, or "" when none is set.
func (s *Service) ActiveTeam(ctx context.Context, ownerID string) (string, error) {
	id, _, err := s.store.GetMeta(ctx, store.OwnerKey(store.MetaActiveTeamID, ownerID))
	return id, err
}

func (s *Service) ownedTeam(ctx context.Context, ownerID, teamID string) (store.TeamRow, error) {
	row, err := s.store.GetTeam(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && row.OwnerID != ownerID) {
		return store.TeamRow{}, fmt.Errorf("team %s: %w", teamID, ErrNotFound)
	}
	return row, err
}
