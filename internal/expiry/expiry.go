// Package expiry finds members whose subscription period is about to end.
//
// It is a read-only consumer of synced data. A member's period starts on
// their join date and lasts 30 days on the standard plan or 365 on the
// yearly plan; a member is due when the period ends today or tomorrow.
package expiry

import (
	"sort"

	"github.com/teamcache/teamcache/internal/model"
)

// Plan is a billing period length.
type Plan int

const (
	Standard Plan = iota
	Yearly
)

// Days returns the period length of p.
func (p Plan) Days() int {
	if p == Yearly {
		return 365
	}
	return 30
}

func (p Plan) String() string {
	if p == Yearly {
		return "yearly"
	}
	return "standard"
}

// PlanOf returns the plan a team bills on.
func PlanOf(t model.Team) Plan {
	if t.IsYearly {
		return Yearly
	}
	return Standard
}

// Window is how many days ahead of the period end a member becomes due.
const Window = 1

// Notice is a member whose period ends within the window.
type Notice struct {
	Team      model.Team
	Member    model.Member
	Plan      Plan
	DaysUntil int
	ExpiresOn model.Date
}

// Classify returns how many days remain in m's period under plan as of
// today, and whether that falls inside the notification window.
func Classify(m model.Member, plan Plan, today model.Date) (int, bool) {
	if m.JoinDate.IsZero() {
		return 0, false
	}
	left := plan.Days() - model.DaysBetween(m.JoinDate, today)
	return left, left >= 0 && left <= Window
}

// Due returns the notices for every member of teams that is due today,
// ordered by days left, then team, then member id. Members already pushed
// and members whose active team is a different team are skipped.
func Due(teams []model.Team, members []model.Member, today model.Date) []Notice {
	byID := make(map[string]model.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}

	var out []Notice
	for _, m := range members {
		if m.IsPushed {
			continue
		}
		if m.ActiveTeamID != nil && *m.ActiveTeamID != "" && *m.ActiveTeamID != m.TeamID {
			continue
		}
		team, ok := byID[m.TeamID]
		if !ok {
			continue
		}

		plan := PlanOf(team)
		left, ok := Classify(m, plan, today)
		if !ok {
			continue
		}
		out = append(out, Notice{
			Team:      team,
			Member:    m,
			Plan:      plan,
			DaysUntil: left,
			ExpiresOn: m.JoinDate.AddDays(plan.Days()),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		if out[i].Team.ID != out[j].Team.ID {
			return out[i].Team.ID < out[j].Team.ID
		}
		return out[i].Member.ID < out[j].Member.ID
	})
	return out
}
