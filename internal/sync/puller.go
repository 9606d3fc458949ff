package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/mapper"
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/remote"
	"github.com/teamcache/teamcache/internal/store"
)

// Puller replaces the local cache with the owner's remote state.
type Puller struct {
	store  *store.Store
	remote remote.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewPuller creates a Puller. If logger is nil, logging is disabled.
func NewPuller(st *store.Store, rs remote.Store, logger *zap.Logger) *Puller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Puller{store: st, remote: rs, logger: logger, now: time.Now}
}

// Pull fetches every team and member of ownerID, overwrites the local
// tables with them atomically and records last_sync. It returns nil, with
// the local store untouched, if anything fails.
func (p *Puller) Pull(ctx context.Context, ownerID string) *model.Snapshot {
	snap, err := p.pull(ctx, ownerID)
	if err != nil {
		p.logger.Warn("pull failed, keeping local data", zap.String("owner", ownerID), zap.Error(err))
		return nil
	}
	return snap
}

func (p *Puller) pull(ctx context.Context, ownerID string) (*model.Snapshot, error) {
	teamRows, err := p.remote.FetchTeams(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams: %w", err)
	}
	memberRows, err := p.remote.FetchMembers(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	teams := make([]store.TeamRow, 0, len(teamRows))
	for _, row := range teamRows {
		t := mapper.TeamToLocal(row, ownerID)
		if t.ID == "" {
			p.logger.Warn("skipping remote team without id", zap.String("owner", ownerID))
			continue
		}
		teams = append(teams, t)
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].CreatedAt.After(teams[j].CreatedAt)
	})

	members := make([]store.MemberRow, 0, len(memberRows))
	for _, row := range memberRows {
		m := mapper.MemberToLocal(row, ownerID)
		if m.ID == "" || m.TeamID == "" {
			p.logger.Warn("skipping remote member without id or team",
				zap.String("owner", ownerID), zap.String("record_id", m.ID))
			continue
		}
		members = append(members, m)
	}

	// Fetches may be slow; a cancelled cycle must not overwrite local data
	// with a snapshot nobody is waiting for.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	syncedAt := p.now()
	if err := p.store.ReplaceSnapshot(ctx, ownerID, teams, members, syncedAt); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	p.logger.Info("pulled remote snapshot",
		zap.String("owner", ownerID),
		zap.Int("teams", len(teams)),
		zap.Int("members", len(members)),
	)

	return &model.Snapshot{
		Teams:   mapper.TeamsToApp(teams),
		Members: mapper.MembersToApp(members),
	}, nil
}
