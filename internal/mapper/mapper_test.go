package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
)

func TestAliases_CanonicalFirst(t *testing.T) {
	for field, names := range Aliases {
		require.NotEmpty(t, names, field)
		assert.Equal(t, field, names[0], "canonical name must be tried first for %s", field)

		seen := map[string]bool{}
		for _, n := range names {
			assert.False(t, seen[n], "duplicate candidate %q for %s", n, field)
			seen[n] = true
		}
	}
}

func TestLookup_FirstMatchWins(t *testing.T) {
	row := map[string]any{
		"two_factor_secret": "third",
		"twoFaSecret":       "second",
		"secret":            "last",
	}

	v, ok := Lookup(row, "two_fa_secret")
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	row["two_fa_secret"] = "canonical"
	v, _ = Lookup(row, "two_fa_secret")
	assert.Equal(t, "canonical", v)
}

func TestLookup_SkipsNil(t *testing.T) {
	row := map[string]any{"two_fa_secret": nil, "totp_secret": "s"}

	v, ok := Lookup(row, "two_fa_secret")
	assert.True(t, ok)
	assert.Equal(t, "s", v)

	_, ok = Lookup(map[string]any{}, "two_fa_secret")
	assert.False(t, ok)
}

func TestLookup_UnlistedField(t *testing.T) {
	v, ok := Lookup(map[string]any{"notes": "x"}, "notes")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestTeamToLocal(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	row := map[string]any{
		"id":          "t1",
		"owner_id":    "row-owner",
		"name":        "Alpha",
		"admin_email": "a@b.com",
		"created_at":  created,
		"is_plus":     true,
	}

	got := TeamToLocal(row, "fallback")

	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, "row-owner", got.OwnerID, "row owner wins")
	assert.Equal(t, "Alpha", got.Name)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, got.IsPlus)
	assert.False(t, got.IsYearly, "absent booleans default to false")
	assert.Nil(t, got.Logo)
	assert.Nil(t, got.LastBackupAt)
}

func TestTeamToLocal_LegacyShape(t *testing.T) {
	row := map[string]any{
		"id":           "t1",
		"teamName":     "Legacy",
		"adminEmail":   "a@b.com",
		"createdAt":    "2023-05-01T10:00:00Z",
		"lastBackupAt": float64(1700000000000),
		"isYearly":     "true",
	}

	got := TeamToLocal(row, "owner")

	assert.Equal(t, "owner", got.OwnerID)
	assert.Equal(t, "Legacy", got.Name)
	assert.Equal(t, "a@b.com", got.AdminEmail)
	assert.Equal(t, 2023, got.CreatedAt.Year())
	require.NotNil(t, got.LastBackupAt)
	assert.Equal(t, int64(1700000000), got.LastBackupAt.Unix())
	assert.True(t, got.IsYearly)
}

func TestMemberToLocal(t *testing.T) {
	row := map[string]any{
		"id":              "m1",
		"team_id":         "t1",
		"email":           "m@x.com",
		"phone":           "",
		"twoFactorSecret": "JBSW",
		"join_date":       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"is_paid":         int64(1),
		"paid_amount":     "12.50",
		"subscriptions":   []any{"spotify", "netflix", "spotify"},
	}

	got := MemberToLocal(row, "owner")

	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "t1", got.TeamID)
	assert.Equal(t, "owner", got.OwnerID)
	require.NotNil(t, got.TwoFASecret)
	assert.Equal(t, "JBSW", *got.TwoFASecret)
	assert.Nil(t, got.Telegram)
	assert.Equal(t, "2024-01-01", got.JoinDate)
	assert.True(t, got.IsPaid)
	assert.Equal(t, 12.5, got.PaidAmount)
	assert.Equal(t, []string{"netflix", "spotify"}, got.Subscriptions)
	assert.False(t, got.IsPushed)
}

func TestMemberToLocal_MalformedDegrades(t *testing.T) {
	row := map[string]any{
		"id":            42.0,
		"teamId":        "t1",
		"joinDate":      "not a date",
		"paid_amount":   map[string]any{"nested": true},
		"is_paid":       []any{},
		"subscriptions": "[broken",
	}

	got := MemberToLocal(row, "owner")

	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "t1", got.TeamID)
	assert.Equal(t, "", got.JoinDate)
	assert.Equal(t, 0.0, got.PaidAmount)
	assert.False(t, got.IsPaid)
	assert.Equal(t, []string{}, got.Subscriptions)
}

func TestMemberToLocal_JoinDateKeepsCivilDay(t *testing.T) {
	row := map[string]any{"id": "m1", "team_id": "t1", "join_date": "2024-06-30T22:00:00-07:00"}

	got := MemberToLocal(row, "owner")

	assert.Equal(t, "2024-06-30", got.JoinDate)
}

func TestAsSubscriptions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"string slice", []string{"b", "a"}, []string{"a", "b"}},
		{"json text", `["x","y","x"]`, []string{"x", "y"}},
		{"comma list", "netflix, spotify,,", []string{"netflix", "spotify"}},
		{"nil", nil, []string{}},
		{"number", 3.0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, asSubscriptions(tt.in))
		})
	}
}

func TestAsBool(t *testing.T) {
	for _, v := range []any{true, "TRUE", "1", "yes", 1.0, int64(2), json.Number("1")} {
		assert.True(t, asBool(v), "%#v", v)
	}
	for _, v := range []any{false, "no", "", nil, 0.0, "garbage", []string{"x"}} {
		assert.False(t, asBool(v), "%#v", v)
	}
}

func TestMemberRoundTrip_AppLocal(t *testing.T) {
	secret := "s"
	m := model.Member{
		ID:            "m1",
		TeamID:        "t1",
		OwnerID:       "owner",
		Email:         "m@x.com",
		TwoFASecret:   &secret,
		JoinDate:      model.Date{Year: 2024, Month: time.February, Day: 29},
		PaidAmount:    5,
		Subscriptions: []string{"spotify", "netflix"},
	}

	row := MemberFromApp(m)
	assert.Equal(t, "2024-02-29", row.JoinDate)

	back := MemberToApp(row)
	assert.Equal(t, m.JoinDate, back.JoinDate)
	assert.Equal(t, []string{"netflix", "spotify"}, back.Subscriptions)
	assert.Equal(t, m.TwoFASecret, back.TwoFASecret)
}

func TestTeamToLocal_RemoteColumnsRoundTrip(t *testing.T) {
	logo := "rocket"
	local := store.TeamRow{
		ID:        "t1",
		OwnerID:   "owner",
		Name:      "Alpha",
		Logo:      &logo,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	// What the processor sends is what the puller reads back.
	got := TeamToLocal(local.Columns(), "owner")

	assert.Equal(t, local, got)
}
