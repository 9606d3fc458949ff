package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcache/teamcache/internal/model"
)

var today = model.Date{Year: 2024, Month: time.March, Day: 15}

func joined(daysAgo int) model.Member {
	return model.Member{ID: "m", TeamID: "t1", JoinDate: today.AddDays(-daysAgo)}
}

func TestClassify_StandardBoundaries(t *testing.T) {
	tests := []struct {
		daysAgo  int
		wantDays int
		wantOK   bool
	}{
		{daysAgo: 28, wantDays: 2, wantOK: false},
		{daysAgo: 29, wantDays: 1, wantOK: true},
		{daysAgo: 30, wantDays: 0, wantOK: true},
		{daysAgo: 31, wantDays: -1, wantOK: false},
		{daysAgo: 45, wantDays: -15, wantOK: false},
		{daysAgo: 0, wantDays: 30, wantOK: false},
	}

	for _, tt := range tests {
		days, ok := Classify(joined(tt.daysAgo), Standard, today)
		assert.Equal(t, tt.wantOK, ok, "joined %d days ago", tt.daysAgo)
		assert.Equal(t, tt.wantDays, days, "joined %d days ago", tt.daysAgo)
	}
}

func TestClassify_Yearly(t *testing.T) {
	days, ok := Classify(joined(365), Yearly, today)
	assert.True(t, ok)
	assert.Equal(t, 0, days)

	_, ok = Classify(joined(30), Yearly, today)
	assert.False(t, ok, "standard boundary must not apply to yearly plans")
}

func TestClassify_CivilDaysAcrossLeapDay(t *testing.T) {
	// 2024-02-14 + 30 days is 2024-03-15 because February has 29 days.
	m := model.Member{JoinDate: model.Date{Year: 2024, Month: time.February, Day: 14}}
	days, ok := Classify(m, Standard, today)
	assert.True(t, ok)
	assert.Equal(t, 0, days)
}

func TestClassify_NoJoinDate(t *testing.T) {
	_, ok := Classify(model.Member{}, Standard, today)
	assert.False(t, ok)
}

func TestDue(t *testing.T) {
	other := "t2"
	same := "t1"
	teams := []model.Team{
		{ID: "t1", Name: "Monthly"},
		{ID: "t2", Name: "Annual", IsYearly: true},
	}
	members := []model.Member{
		{ID: "a", TeamID: "t1", JoinDate: today.AddDays(-29)},
		{ID: "b", TeamID: "t1", JoinDate: today.AddDays(-30)},
		{ID: "pushed", TeamID: "t1", JoinDate: today.AddDays(-30), IsPushed: true},
		{ID: "moved", TeamID: "t1", JoinDate: today.AddDays(-30), ActiveTeamID: &other},
		{ID: "self", TeamID: "t1", JoinDate: today.AddDays(-30), ActiveTeamID: &same},
		{ID: "c", TeamID: "t2", JoinDate: today.AddDays(-364)},
		{ID: "d", TeamID: "t2", JoinDate: today.AddDays(-30)},
		{ID: "orphan", TeamID: "gone", JoinDate: today.AddDays(-30)},
	}

	notices := Due(teams, members, today)
	require.Len(t, notices, 4)

	var ids []string
	for _, n := range notices {
		ids = append(ids, n.Member.ID)
	}
	assert.Equal(t, []string{"b", "self", "a", "c"}, ids)

	assert.Equal(t, Yearly, notices[3].Plan)
	assert.Equal(t, "2024-03-16", notices[3].ExpiresOn.String())
	assert.Equal(t, "2024-03-15", notices[0].ExpiresOn.String())
}

func TestPlan(t *testing.T) {
	assert.Equal(t, Yearly, PlanOf(model.Team{IsYearly: true}))
	assert.Equal(t, Standard, PlanOf(model.Team{IsPlus: true}))
	assert.Equal(t, "yearly", Yearly.String())
	assert.Equal(t, 30, Standard.Days())
}
