// Package model defines the application-facing entities of the team cache.
//
// These are the shapes callers read and write. The storage row shapes live in
// internal/store and the conversion between the two in internal/mapper.
package model

import (
	"sort"
	"time"
)

// Team is a tenant-scoped group of members.
type Team struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Name         string     `json:"name"`
	AdminEmail   string     `json:"adminEmail"`
	Logo         *string    `json:"logo,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastBackupAt *time.Time `json:"lastBackupAt,omitempty"`
	IsYearly     bool       `json:"isYearly"`
	IsPlus       bool       `json:"isPlus"`
}

// Member belongs to exactly one team through TeamID.
type Member struct {
	ID            string   `json:"id"`
	TeamID        string   `json:"teamId"`
	OwnerID       string   `json:"ownerId"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Telegram      *string  `json:"telegram,omitempty"`
	TwoFASecret   *string  `json:"twoFaSecret,omitempty"`
	Password      *string  `json:"password,omitempty"`
	Password2     *string  `json:"password2,omitempty"`
	JoinDate      Date     `json:"joinDate"`
	IsPaid        bool     `json:"isPaid"`
	PaidAmount    float64  `json:"paidAmount"`
	PendingAmount float64  `json:"pendingAmount"`
	Subscriptions []string `json:"subscriptions"`
	IsPushed      bool     `json:"isPushed"`
	ActiveTeamID  *string  `json:"activeTeamId,omitempty"`
}

// Snapshot is the full set of entities for one owner as last pulled.
type Snapshot struct {
	Teams   []Team   `json:"teams"`
	Members []Member `json:"members"`
}

// MembersOf returns the members of teamID in s.
func (s *Snapshot) MembersOf(teamID string) []Member {
	var out []Member
	for _, m := range s.Members {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out
}

// NormalizeSubscriptions returns subs as a sorted set with empty tags removed.
// Subscriptions are order-insignificant, so every shape that stores them goes
// through here to keep comparisons and pulls stable.
func NormalizeSubscriptions(subs []string) []string {
	seen := make(map[string]bool, len(subs))
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// StringPtr returns &s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
