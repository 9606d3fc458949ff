package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/mapper"
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
)

// ErrMalformed is returned for documents that are not a backup in any
// supported shape, or that contain records failing validation.
var ErrMalformed = errors.New("malformed backup")

// Shape names the document layout an import was read as.
type Shape string

const (
	ShapeCurrent Shape = "current"
	ShapeLegacy  Shape = "legacy"
)

// ImportResult describes a completed import.
type ImportResult struct {
	Shape        Shape
	TeamsAdded   int
	TeamsUpdated int
	Members      int
	ActiveTeamID string
}

// plan is a fully validated import, ready to be written.
type plan struct {
	shape    Shape
	teams    []store.TeamRow
	members  []store.MemberRow
	active   string
	notepads json.RawMessage
}

// Import reads data as a backup document and merges it into the owner's
// local state. It reports false, leaving local state untouched, when data
// is malformed or the write fails.
func (s *Service) Import(ctx context.Context, ownerID string, data []byte) bool {
	res, err := s.ImportDocument(ctx, ownerID, data)
	if err != nil {
		s.logger.Warn("import rejected", zap.String("owner", ownerID), zap.Error(err))
		return false
	}
	s.logger.Info("import complete",
		zap.String("owner", ownerID),
		zap.String("shape", string(res.Shape)),
		zap.Int("teams_added", res.TeamsAdded),
		zap.Int("teams_updated", res.TeamsUpdated),
		zap.Int("members", res.Members),
	)
	return true
}

// ImportDocument is Import returning the result or the reason it failed.
//
// Two shapes are accepted. The current shape is what Export writes; its
// teams and members are upserted by id. The legacy shape
// {teamName, adminEmail, members} describes one team and always becomes a
// new team added next to the existing ones, which is then made active.
func (s *Service) ImportDocument(ctx context.Context, ownerID string, data []byte) (*ImportResult, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrMalformed)
	}

	var (
		p   *plan
		err error
	)
	switch {
	case doc["teams"] != nil:
		p, err = s.planCurrent(ctx, ownerID, doc)
	case isLegacy(doc):
		p, err = s.planLegacy(ctx, ownerID, doc)
	default:
		return nil, fmt.Errorf("%w: no teams found", ErrMalformed)
	}
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ownerID, p)
}

func isLegacy(doc map[string]any) bool {
	_, named := mapper.Lookup(doc, "name")
	_, hasMembers := doc["members"]
	return named || hasMembers
}

func (s *Service) planCurrent(ctx context.Context, ownerID string, doc map[string]any) (*plan, error) {
	rawTeams, ok := doc["teams"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: teams is not a list", ErrMalformed)
	}

	p := &plan{shape: ShapeCurrent}
	known := make(map[string]bool, len(rawTeams))
	for i, raw := range rawTeams {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: team %d is not an object", ErrMalformed, i)
		}
		team, err := s.teamRow(obj, ownerID)
		if err != nil {
			return nil, fmt.Errorf("team %d: %w", i, err)
		}
		if known[team.ID] {
			return nil, fmt.Errorf("%w: duplicate team id %s", ErrMalformed, team.ID)
		}
		known[team.ID] = true
		p.teams = append(p.teams, team)

		members, err := s.memberRows(obj["members"], ownerID, team.ID)
		if err != nil {
			return nil, fmt.Errorf("team %s: %w", team.ID, err)
		}
		p.members = append(p.members, members...)
	}

	// Members listed flat next to the teams keep their own team id.
	flat, err := s.memberRows(doc["members"], ownerID, "")
	if err != nil {
		return nil, err
	}
	for _, m := range flat {
		if !known[m.TeamID] {
			ok, err := s.store.HasTeam(ctx, ownerID, m.TeamID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: member %s references unknown team %q", ErrMalformed, m.ID, m.TeamID)
			}
		}
	}
	p.members = append(p.members, flat...)

	if active, ok := mapper.Lookup(doc, "active_team_id"); ok {
		p.active, _ = active.(string)
	}
	if notes, ok := doc["notepads"]; ok && notes != nil {
		raw, err := json.Marshal(notes)
		if err != nil {
			return nil, fmt.Errorf("%w: notepads: %w", ErrMalformed, err)
		}
		p.notepads = raw
	}
	return p, nil
}

func (s *Service) planLegacy(ctx context.Context, ownerID string, doc map[string]any) (*plan, error) {
	// The legacy document never carried a team id, so any id it happens to
	// hold is ignored and the team is always new.
	obj := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "id" && k != "members" {
			obj[k] = v
		}
	}
	obj["id"] = s.newID()

	team, err := s.teamRow(obj, ownerID)
	if err != nil {
		return nil, err
	}

	members, err := s.memberRows(doc["members"], ownerID, team.ID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		_, err := s.store.GetMember(ctx, members[i].ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			members[i].ID = s.newID()
		}
	}

	return &plan{
		shape:   ShapeLegacy,
		teams:   []store.TeamRow{team},
		members: members,
		active:  team.ID,
	}, nil
}

func (s *Service) teamRow(obj map[string]any, ownerID string) (store.TeamRow, error) {
	t := mapper.TeamToLocal(obj, ownerID)
	t.OwnerID = ownerID
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return store.TeamRow{}, fmt.Errorf("%w: team name is required", ErrMalformed)
	}
	if t.ID == "" {
		t.ID = s.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	return t, nil
}

// memberRows maps a list of member objects. A non-empty teamID re-parents
// every member to it.
func (s *Service) memberRows(raw any, ownerID, teamID string) ([]store.MemberRow, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: members is not a list", ErrMalformed)
	}

	today := model.DateOf(s.now()).String()
	seen := make(map[string]bool, len(list))
	rows := make([]store.MemberRow, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: member %d is not an object", ErrMalformed, i)
		}
		m := mapper.MemberToLocal(obj, ownerID)
		m.OwnerID = ownerID
		m.Email = strings.TrimSpace(m.Email)
		m.Phone = strings.TrimSpace(m.Phone)
		if teamID != "" {
			m.TeamID = teamID
		}
		if m.TeamID == "" {
			return nil, fmt.Errorf("%w: member %d has no team", ErrMalformed, i)
		}
		if m.Email == "" && m.Phone == "" {
			return nil, fmt.Errorf("%w: member %d needs an email or phone", ErrMalformed, i)
		}
		if m.ID == "" || seen[m.ID] {
			m.ID = s.newID()
		}
		seen[m.ID] = true
		if m.JoinDate == "" {
			m.JoinDate = today
		}
		rows = append(rows, m)
	}
	return rows, nil
}

// apply writes a plan in one transaction, queueing an insert for every new
// record and an update for every existing one.
func (s *Service) apply(ctx context.Context, ownerID string, p *plan) (*ImportResult, error) {
	res := &ImportResult{Shape: p.shape}
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		imported := make(map[string]bool, len(p.teams))
		for _, t := range p.teams {
			existing, err := s.store.GetTeam(ctx, t.ID)
			exists := err == nil
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if exists && existing.OwnerID != ownerID {
				return fmt.Errorf("%w: team %s belongs to another owner", ErrMalformed, t.ID)
			}

			if err := s.store.PutTeam(ctx, t); err != nil {
				return err
			}
			var payload store.Payload = store.TeamInsert{Team: t}
			if exists {
				payload = store.TeamUpdate{Team: t}
				res.TeamsUpdated++
			} else {
				res.TeamsAdded++
			}
			if _, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, t.ID, payload)); err != nil {
				return err
			}
			imported[t.ID] = true
		}

		for _, m := range p.members {
			existing, err := s.store.GetMember(ctx, m.ID)
			exists := err == nil
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if exists && existing.OwnerID != ownerID {
				return fmt.Errorf("%w: member %s belongs to another owner", ErrMalformed, m.ID)
			}

			if err := s.store.PutMember(ctx, m); err != nil {
				return err
			}
			var payload store.Payload = store.MemberInsert{Member: m}
			if exists {
				payload = store.MemberUpdate{Member: m}
			}
			if _, err := s.store.AppendQueue(ctx, store.NewQueueEntry(ownerID, m.ID, payload)); err != nil {
				return err
			}
			res.Members++
		}

		if p.active != "" {
			ok := imported[p.active]
			if !ok {
				var err error
				if ok, err = s.store.HasTeam(ctx, ownerID, p.active); err != nil {
					return err
				}
			}
			if ok {
				if err := s.store.SetMeta(ctx, store.OwnerKey(store.MetaActiveTeamID, ownerID), p.active); err != nil {
					return err
				}
				res.ActiveTeamID = p.active
			}
		}
		if p.notepads != nil {
			return s.store.SetMeta(ctx, store.OwnerKey(store.MetaNotepads, ownerID), string(p.notepads))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import backup: %w", err)
	}
	return res, nil
}

func newID() string { return uuid.NewString() }
