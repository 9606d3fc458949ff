package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/mapper"
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
)

// AddMember stores a new member of an existing team and queues its insert.
// An empty ID is assigned and a zero JoinDate becomes today. A supplied ID
// that is already stored fails with ErrExists.
func (s *Service) AddMember(ctx context.Context, ownerID string, m model.Member) (model.Member, error) {
	if err := validateMember(&m); err != nil {
		return model.Member{}, err
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.JoinDate.IsZero() {
		m.JoinDate = model.DateOf(s.now())
	}
	m.OwnerID = ownerID

	row := mapper.MemberFromApp(m)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetMember(ctx, row.ID); err == nil {
			return fmt.Errorf("member %s: %w", row.ID, ErrExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := s.requireTeam(ctx, ownerID, row.TeamID); err != nil {
			return err
		}
		if err := s.store.PutMember(ctx, row); err != nil {
			return err
		}
		_, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, row.ID, store.MemberInsert{Member: row}))
		return err
	})
	if err != nil {
		return model.Member{}, fmt.Errorf("failed to add member: %w", err)
	}

	s.logger.Debug("member added",
		zap.String("owner", ownerID), zap.String("record_id", row.ID), zap.String("team", row.TeamID))
	return mapper.MemberToApp(row), nil
}

// UpdateMember overwrites an existing member and queues the change. Moving
// a member to another team requires that team to exist.
func (s *Service) UpdateMember(ctx context.Context, ownerID string, m model.Member) (model.Member, error) {
	if err := validateMember(&m); err != nil {
		return model.Member{}, err
	}

	var row store.MemberRow
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.ownedMember(ctx, ownerID, m.ID)
		if err != nil {
			return err
		}
		if m.TeamID != existing.TeamID {
			if err := s.requireTeam(ctx, ownerID, m.TeamID); err != nil {
				return err
			}
		}
		if m.JoinDate.IsZero() {
			m.JoinDate, _ = model.ParseDate(existing.JoinDate)
		}
		m.OwnerID = existing.OwnerID
		row = mapper.MemberFromApp(m)
		return s.putMemberUpdate(ctx, ownerID, row)
	})
	if err != nil {
		return model.Member{}, fmt.Errorf("failed to update member %s: %w", m.ID, err)
	}
	return mapper.MemberToApp(row), nil
}

// RecordPayment marks the member paid, adds amount to the paid total and
// takes it off the pending amount.
func (s *Service) RecordPayment(ctx context.Context, ownerID, memberID string, amount float64) (model.Member, error) {
	if amount < 0 {
		return model.Member{}, fmt.Errorf("payment amount must not be negative: %w", ErrInvalid)
	}

	var row store.MemberRow
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.ownedMember(ctx, ownerID, memberID)
		if err != nil {
			return err
		}
		existing.IsPaid = true
		existing.PaidAmount += amount
		existing.PendingAmount = max(0, existing.PendingAmount-amount)
		row = existing
		return s.putMemberUpdate(ctx, ownerID, row)
	})
	if err != nil {
		return model.Member{}, fmt.Errorf("failed to record payment for %s: %w", memberID, err)
	}
	return mapper.MemberToApp(row), nil
}

func (s *Service) putMemberUpdate(ctx context.Context, ownerID string, row store.MemberRow) error {
	if err := s.store.PutMember(ctx, row); err != nil {
		return err
	}
	_, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, row.ID, store.MemberUpdate{Member: row}))
	return err
}

// DeleteMember removes a member and queues the delete.
func (s *Service) DeleteMember(ctx context.Context, ownerID, memberID string) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.ownedMember(ctx, ownerID, memberID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteMember(ctx, memberID); err != nil {
			return err
		}
		_, err = s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, memberID, store.MemberDelete{TeamID: existing.TeamID}))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete member %s: %w", memberID, err)
	}
	return nil
}

// GetMember returns one of the owner's members.
func (s *Service) GetMember(ctx context.Context, ownerID, memberID string) (model.Member, error) {
	row, err := s.ownedMember(ctx, ownerID, memberID)
	if err != nil {
		return model.Member{}, err
	}
	return mapper.MemberToApp(row), nil
}

// ListMembers returns the members of teamID, or all of the owner's members
// when teamID is empty.
func (s *Service) ListMembers(ctx context.Context, ownerID, teamID string) ([]model.Member, error) {
	if teamID == "" {
		rows, err := s.store.ListMembersByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return mapper.MembersToApp(rows), nil
	}

	if _, err := s.ownedTeam(ctx, ownerID, teamID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListMembersByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return mapper.MembersToApp(rows), nil
}

func (s *Service) requireTeam(ctx context.Context, ownerID, teamID string) error {
	ok, err := s.store.HasTeam(ctx, ownerID, teamID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("team %s: %w", teamID, ErrOrphanMember)
	}
	return nil
}

func (s *Service) ownedMember(ctx context.Context, ownerID, memberID string) (store.MemberRow, error) {
	row, err := s.store.GetMember(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && row.OwnerID != ownerID) {
		return store.MemberRow{}, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	return row, err
}

func validateMember(m *model.Member) error {
	m.Email = strings.TrimSpace(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
	if m.TeamID == "" {
		return fmt.Errorf("member team is required: %w", ErrInvalid)
	}
	if m.Email == "" && m.Phone == "" {
		return fmt.Errorf("member needs an email or phone: %w", ErrInvalid)
	}
	m.Subscriptions = model.NormalizeSubscriptions(m.Subscriptions)
	return nil
}
