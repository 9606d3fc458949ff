package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
	"github.com/teamcache/teamcache/internal/teams"
)

const owner = "owner-1"

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func setupBackup(t *testing.T) (*Service, *teams.Service, *store.Store) {
	t.Helper()

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := teams.New(st, nil)
	b := New(st, svc, nil)
	b.now = func() time.Time { return fixedNow }
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("imported-%d", n)
	}
	return b, svc, st
}

func queueOps(t *testing.T, st *store.Store) []string {
	t.Helper()
	entries, err := st.ListQueueByOwner(context.Background(), owner)
	require.NoError(t, err)
	ops := make([]string, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, fmt.Sprintf("%s:%s/%s", e.Operation, e.Table, e.RecordID))
	}
	return ops
}

func TestImport_LegacyShape(t *testing.T) {
	b, svc, st := setupBackup(t)
	ctx := context.Background()

	existing, err := svc.CreateTeam(ctx, owner, model.Team{Name: "Existing"})
	require.NoError(t, err)

	data := []byte(`{"teamName":"X","adminEmail":"a@b.com","members":[{"id":"1","email":"m@x.com","phone":"","joinDate":"2024-01-01"}]}`)
	require.True(t, b.Import(ctx, owner, data))

	list, err := svc.ListTeams(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)

	var imported model.Team
	for _, team := range list {
		if team.ID != existing.ID {
			imported = team
		}
	}
	assert.Equal(t, "X", imported.Name)
	assert.Equal(t, "a@b.com", imported.AdminEmail)
	assert.Equal(t, owner, imported.OwnerID)

	members, err := svc.ListMembers(ctx, owner, imported.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "1", members[0].ID)
	assert.Equal(t, "m@x.com", members[0].Email)
	assert.Equal(t, "2024-01-01", members[0].JoinDate.String())

	active, err := svc.ActiveTeam(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, imported.ID, active)

	ops := queueOps(t, st)
	assert.Equal(t, []string{
		"insert:teams/" + existing.ID,
		"insert:teams/" + imported.ID,
		"insert:members/1",
	}, ops)
}

func TestImport_LegacyMemberIDCollision(t *testing.T) {
	b, svc, _ := setupBackup(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, owner, model.Team{Name: "Existing"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, owner, model.Member{ID: "1", TeamID: team.ID, Email: "old@x.com"})
	require.NoError(t, err)

	data := []byte(`{"teamName":"X","members":[{"id":"1","email":"m@x.com"}]}`)
	res, err := b.ImportDocument(ctx, owner, data)
	require.NoError(t, err)
	assert.Equal(t, ShapeLegacy, res.Shape)

	old, err := svc.GetMember(ctx, owner, "1")
	require.NoError(t, err)
	assert.Equal(t, "old@x.com", old.Email, "existing member must not be overwritten")

	members, err := svc.ListMembers(ctx, owner, res.ActiveTeamID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.NotEqual(t, "1", members[0].ID)
	assert.Equal(t, "2024-05-01", members[0].JoinDate.String())
}

func TestImport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"teams":`},
		{"array", `[1,2,3]`},
		{"null", `null`},
		{"no teams", `{"activeTeamId":"t1"}`},
		{"teams not a list", `{"teams":{"id":"t1"}}`},
		{"team without name", `{"teams":[{"id":"t1"}]}`},
		{"member without contact", `{"teams":[{"id":"t1","name":"A","members":[{"id":"m1"}]}]}`},
		{"duplicate team", `{"teams":[{"id":"t1","name":"A"},{"id":"t1","name":"B"}]}`},
		{"orphan flat member", `{"teams":[],"members":[{"id":"m1","teamId":"nope","email":"m@x.com"}]}`},
		{"legacy without name", `{"adminEmail":"a@b.com","members":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, svc, st := setupBackup(t)
			ctx := context.Background()

			before, err := svc.CreateTeam(ctx, owner, model.Team{Name: "Keep"})
			require.NoError(t, err)

			assert.False(t, b.Import(ctx, owner, []byte(tt.data)))

			list, err := svc.ListTeams(ctx, owner)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, before.ID, list[0].ID)
			assert.Equal(t, []string{"insert:teams/" + before.ID}, queueOps(t, st))
		})
	}
}

func TestImport_OtherOwnersTeamRollsBack(t *testing.T) {
	b, svc, st := setupBackup(t)
	ctx := context.Background()

	theirs, err := svc.CreateTeam(ctx, "someone-else", model.Team{Name: "Theirs"})
	require.NoError(t, err)

	data := fmt.Sprintf(`{"teams":[{"id":"fresh","name":"Mine"},{"id":%q,"name":"Stolen"}]}`, theirs.ID)
	assert.False(t, b.Import(ctx, owner, []byte(data)))

	_, err = st.GetTeam(ctx, "fresh")
	assert.ErrorIs(t, err, store.ErrNotFound, "first team must be rolled back")
	assert.Empty(t, queueOps(t, st))
}

func TestExport_MetaScopedToOwner(t *testing.T) {
	b, svc, st := setupBackup(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, owner, model.Team{Name: "Alpha"})
	require.NoError(t, err)
	require.NoError(t, svc.SetActiveTeam(ctx, owner, team.ID))
	require.NoError(t, st.SetMeta(ctx, store.OwnerKey(store.MetaNotepads, owner), `{"general":"mine"}`))

	doc, err := b.Export(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, doc.Teams)
	assert.Empty(t, doc.ActiveTeamID)
	assert.Empty(t, doc.Notepads)
}

func TestExportImport_RoundTrip(t *testing.T) {
	b, svc, st := setupBackup(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, owner, model.Team{Name: "Alpha", AdminEmail: "a@b.com", IsYearly: true})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, owner, model.Member{
		TeamID:        team.ID,
		Email:         "m@x.com",
		JoinDate:      model.Date{Year: 2024, Month: time.February, Day: 29},
		Subscriptions: []string{"spotify", "netflix"},
		PaidAmount:    12.5,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetActiveTeam(ctx, owner, team.ID))
	require.NoError(t, st.SetMeta(ctx, store.OwnerKey(store.MetaNotepads, owner), `{"general":"call back"}`))

	doc, err := b.Export(ctx, owner)
	require.NoError(t, err)
	require.Len(t, doc.Teams, 1)
	require.Len(t, doc.Teams[0].Members, 1)
	assert.Equal(t, team.ID, doc.ActiveTeamID)
	assert.Equal(t, FormatVersion, doc.Version)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	// Import into a fresh store as a restore.
	restored, restoredSvc, restoredStore := setupBackup(t)
	res, err := restored.ImportDocument(ctx, owner, data)
	require.NoError(t, err)
	assert.Equal(t, ShapeCurrent, res.Shape)
	assert.Equal(t, 1, res.TeamsAdded)
	assert.Equal(t, 1, res.Members)
	assert.Equal(t, team.ID, res.ActiveTeamID)

	snap, err := restoredSvc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Len(t, snap.Teams, 1)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "Alpha", snap.Teams[0].Name)
	assert.True(t, snap.Teams[0].IsYearly)
	assert.True(t, snap.Teams[0].CreatedAt.Equal(team.CreatedAt))
	assert.Equal(t, "2024-02-29", snap.Members[0].JoinDate.String())
	assert.Equal(t, []string{"netflix", "spotify"}, snap.Members[0].Subscriptions)
	assert.InDelta(t, 12.5, snap.Members[0].PaidAmount, 0.001)

	notes, ok, err := restoredStore.GetMeta(ctx, store.OwnerKey(store.MetaNotepads, owner))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"general":"call back"}`, notes)

	// Importing the same document again updates instead of inserting.
	res, err = restored.ImportDocument(ctx, owner, data)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TeamsAdded)
	assert.Equal(t, 1, res.TeamsUpdated)
	ops := queueOps(t, restoredStore)
	assert.Equal(t, "update:teams/"+team.ID, ops[len(ops)-2])
}

func TestBackup_WritesFileAndStampsTeams(t *testing.T) {
	b, svc, _ := setupBackup(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, owner, model.Team{Name: "Alpha"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "backups", "teams.json")
	require.NoError(t, b.Backup(ctx, owner, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Teams, 1)
	assert.Equal(t, team.ID, doc.Teams[0].ID)
	assert.Empty(t, doc.Teams[0].Members)

	stamped, err := svc.GetTeam(ctx, owner, team.ID)
	require.NoError(t, err)
	require.NotNil(t, stamped.LastBackupAt)
	assert.True(t, stamped.LastBackupAt.Equal(fixedNow))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}
