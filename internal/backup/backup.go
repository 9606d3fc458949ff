// Package backup exports the owner's local state to a JSON document and
// imports such documents back, including the legacy single-team shape.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/mapper"
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
	"github.com/teamcache/teamcache/internal/teams"
)

// FormatVersion is written into every exported document.
const FormatVersion = 2

// Document is the full-state backup format.
type Document struct {
	Version      int             `json:"version"`
	ExportedAt   time.Time       `json:"exportedAt"`
	Teams        []TeamDoc       `json:"teams"`
	ActiveTeamID string          `json:"activeTeamId,omitempty"`
	Notepads     json.RawMessage `json:"notepads,omitempty"`
}

// TeamDoc is a team with its members nested.
type TeamDoc struct {
	model.Team
	Members []model.Member `json:"members"`
}

// Service exports and imports backups.
type Service struct {
	store  *store.Store
	teams  *teams.Service
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Service. If logger is nil, logging is disabled.
func New(st *store.Store, svc *teams.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, teams: svc, logger: logger, now: time.Now, newID: newID}
}

// Export builds a Document from the owner's local state.
func (s *Service) Export(ctx context.Context, ownerID string) (*Document, error) {
	teamRows, err := s.store.ListTeamsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	memberRows, err := s.store.ListMembersByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	byTeam := make(map[string][]model.Member)
	for _, m := range mapper.MembersToApp(memberRows) {
		byTeam[m.TeamID] = append(byTeam[m.TeamID], m)
	}

	doc := &Document{
		Version:    FormatVersion,
		ExportedAt: s.now().UTC(),
		Teams:      make([]TeamDoc, 0, len(teamRows)),
	}
	for _, t := range mapper.TeamsToApp(teamRows) {
		members := byTeam[t.ID]
		if members == nil {
			members = []model.Member{}
		}
		doc.Teams = append(doc.Teams, TeamDoc{Team: t, Members: members})
	}

	if active, ok, err := s.store.GetMeta(ctx, store.OwnerKey(store.MetaActiveTeamID, ownerID)); err != nil {
		return nil, err
	} else if ok {
		doc.ActiveTeamID = active
	}
	if notes, ok, err := s.store.GetMeta(ctx, store.OwnerKey(store.MetaNotepads, ownerID)); err != nil {
		return nil, err
	} else if ok && json.Valid([]byte(notes)) {
		doc.Notepads = json.RawMessage(notes)
	}
	return doc, nil
}

// WriteFile exports to path. The file is written next to its final name
// and renamed into place, so a crash never leaves a truncated backup.
func (s *Service) WriteFile(ctx context.Context, ownerID, path string) (*Document, error) {
	doc, err := s.Export(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("failed to move backup into place: %w", err)
	}

	s.logger.Info("backup written", zap.String("owner", ownerID), zap.String("path", path), zap.Int("teams", len(doc.Teams)))
	return doc, nil
}

// Backup writes the backup file and stamps every exported team with the
// backup time.
func (s *Service) Backup(ctx context.Context, ownerID, path string) error {
	doc, err := s.WriteFile(ctx, ownerID, path)
	if err != nil {
		return err
	}
	at := s.now()
	for _, t := range doc.Teams {
		if _, err := s.teams.MarkBackedUp(ctx, ownerID, t.ID, at); err != nil {
			return err
		}
	}
	return nil
}
