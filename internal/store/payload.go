package store

import (
	"encoding/json"
	"fmt"
)

// Operation is the kind of remote mutation a queue entry replays.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Payload is the typed body of a queue entry. Each (table, operation) pair
// has exactly one variant, carrying exactly what that replay needs.
type Payload interface {
	Table() Table
	Operation() Operation
	// RemoteColumns returns the column values the replay sends. Updates
	// leave out the id; deletes send nothing.
	RemoteColumns() map[string]any
}

// TeamInsert replays as a remote upsert of the full team row.
type TeamInsert struct {
	Team TeamRow `json:"team"`
}

func (TeamInsert) Table() Table                    { return TableTeams }
func (TeamInsert) Operation() Operation            { return OpInsert }
func (p TeamInsert) RemoteColumns() map[string]any { return p.Team.Columns() }

// TeamUpdate replays as a remote partial update by id.
type TeamUpdate struct {
	Team TeamRow `json:"team"`
}

func (TeamUpdate) Table() Table         { return TableTeams }
func (TeamUpdate) Operation() Operation { return OpUpdate }
func (p TeamUpdate) RemoteColumns() map[string]any {
	cols := p.Team.Columns()
	delete(cols, "id")
	return cols
}

// TeamDelete replays as a remote delete by record id.
type TeamDelete struct{}

func (TeamDelete) Table() Table                  { return TableTeams }
func (TeamDelete) Operation() Operation          { return OpDelete }
func (TeamDelete) RemoteColumns() map[string]any { return nil }

// MemberInsert replays as a remote upsert of the full member row.
type MemberInsert struct {
	Member MemberRow `json:"member"`
}

func (MemberInsert) Table() Table                    { return TableMembers }
func (MemberInsert) Operation() Operation            { return OpInsert }
func (p MemberInsert) RemoteColumns() map[string]any { return p.Member.Columns() }

// MemberUpdate replays as a remote partial update by id.
type MemberUpdate struct {
	Member MemberRow `json:"member"`
}

func (MemberUpdate) Table() Table         { return TableMembers }
func (MemberUpdate) Operation() Operation { return OpUpdate }
func (p MemberUpdate) RemoteColumns() map[string]any {
	cols := p.Member.Columns()
	delete(cols, "id")
	return cols
}

// MemberDelete replays as a remote delete by record id.
type MemberDelete struct {
	TeamID string `json:"team_id,omitempty"`
}

func (MemberDelete) Table() Table                  { return TableMembers }
func (MemberDelete) Operation() Operation          { return OpDelete }
func (MemberDelete) RemoteColumns() map[string]any { return nil }

// ParentTeamID returns the team a member payload points at, or "".
func ParentTeamID(p Payload) string {
	switch v := p.(type) {
	case MemberInsert:
		return v.Member.TeamID
	case MemberUpdate:
		return v.Member.TeamID
	case MemberDelete:
		return v.TeamID
	}
	return ""
}

func decodePayload(table Table, op Operation, data []byte) (Payload, error) {
	var p Payload
	var err error

	switch {
	case table == TableTeams && op == OpInsert:
		var v TeamInsert
		err = json.Unmarshal(data, &v)
		p = v
	case table == TableTeams && op == OpUpdate:
		var v TeamUpdate
		err = json.Unmarshal(data, &v)
		p = v
	case table == TableTeams && op == OpDelete:
		p = TeamDelete{}
	case table == TableMembers && op == OpInsert:
		var v MemberInsert
		err = json.Unmarshal(data, &v)
		p = v
	case table == TableMembers && op == OpUpdate:
		var v MemberUpdate
		err = json.Unmarshal(data, &v)
		p = v
	case table == TableMembers && op == OpDelete:
		var v MemberDelete
		if len(data) > 0 {
			err = json.Unmarshal(data, &v)
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown queue payload kind %s/%s", table, op)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s payload: %w", table, op, err)
	}
	return p, nil
}
