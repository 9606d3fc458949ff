// Package mapper converts between remote rows, local storage rows and
// application entities.
//
// All functions are pure and total: absent optional fields become nil,
// absent booleans become false, and malformed values degrade to zero values
// instead of failing the record.
package mapper

import (
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
)

// TeamToLocal maps a remote or legacy team row. The row's own owner id wins
// over ownerID.
func TeamToLocal(row map[string]any, ownerID string) store.TeamRow {
	t := store.TeamRow{
		ID:         str(row, "id"),
		OwnerID:    owner(row, ownerID),
		Name:       str(row, "name"),
		AdminEmail: str(row, "admin_email"),
		Logo:       optional(row, "logo"),
		IsYearly:   boolean(row, "is_yearly"),
		IsPlus:     boolean(row, "is_plus"),
	}
	if v, ok := Lookup(row, "created_at"); ok {
		t.CreatedAt, _ = asTime(v)
	}
	if v, ok := Lookup(row, "last_backup_at"); ok {
		if ts, ok := asTime(v); ok {
			t.LastBackupAt = &ts
		}
	}
	return t
}

// MemberToLocal maps a remote or legacy member row.
func MemberToLocal(row map[string]any, ownerID string) store.MemberRow {
	m := store.MemberRow{
		ID:            str(row, "id"),
		TeamID:        str(row, "team_id"),
		OwnerID:       owner(row, ownerID),
		Email:         str(row, "email"),
		Phone:         str(row, "phone"),
		Telegram:      optional(row, "telegram"),
		TwoFASecret:   optional(row, "two_fa_secret"),
		Password:      optional(row, "password"),
		Password2:     optional(row, "password2"),
		IsPaid:        boolean(row, "is_paid"),
		PaidAmount:    float(row, "paid_amount"),
		PendingAmount: float(row, "pending_amount"),
		IsPushed:      boolean(row, "is_pushed"),
		ActiveTeamID:  optional(row, "active_team_id"),
		Subscriptions: []string{},
	}
	if v, ok := Lookup(row, "join_date"); ok {
		m.JoinDate = asDate(v)
	}
	if v, ok := Lookup(row, "subscriptions"); ok {
		m.Subscriptions = asSubscriptions(v)
	}
	return m
}

// TeamToApp maps a storage row to the application entity.
func TeamToApp(t store.TeamRow) model.Team {
	return model.Team{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		Name:         t.Name,
		AdminEmail:   t.AdminEmail,
		Logo:         t.Logo,
		CreatedAt:    t.CreatedAt,
		LastBackupAt: t.LastBackupAt,
		IsYearly:     t.IsYearly,
		IsPlus:       t.IsPlus,
	}
}

// MemberToApp maps a storage row to the application entity. An unparsable
// join date becomes the zero Date.
func MemberToApp(m store.MemberRow) model.Member {
	joined, _ := model.ParseDate(m.JoinDate)
	return model.Member{
		ID:            m.ID,
		TeamID:        m.TeamID,
		OwnerID:       m.OwnerID,
		Email:         m.Email,
		Phone:         m.Phone,
		Telegram:      m.Telegram,
		TwoFASecret:   m.TwoFASecret,
		Password:      m.Password,
		Password2:     m.Password2,
		JoinDate:      joined,
		IsPaid:        m.IsPaid,
		PaidAmount:    m.PaidAmount,
		PendingAmount: m.PendingAmount,
		Subscriptions: model.NormalizeSubscriptions(m.Subscriptions),
		IsPushed:      m.IsPushed,
		ActiveTeamID:  m.ActiveTeamID,
	}
}

// TeamFromApp maps an application entity to its storage row.
func TeamFromApp(t model.Team) store.TeamRow {
	row := store.TeamRow{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		Name:         t.Name,
		AdminEmail:   t.AdminEmail,
		Logo:         t.Logo,
		CreatedAt:    t.CreatedAt.UTC(),
		LastBackupAt: t.LastBackupAt,
		IsYearly:     t.IsYearly,
		IsPlus:       t.IsPlus,
	}
	if row.LastBackupAt != nil {
		ts := row.LastBackupAt.UTC()
		row.LastBackupAt = &ts
	}
	return row
}

// MemberFromApp maps an application entity to its storage row.
func MemberFromApp(m model.Member) store.MemberRow {
	return store.MemberRow{
		ID:            m.ID,
		TeamID:        m.TeamID,
		OwnerID:       m.OwnerID,
		Email:         m.Email,
		Phone:         m.Phone,
		Telegram:      m.Telegram,
		TwoFASecret:   m.TwoFASecret,
		Password:      m.Password,
		Password2:     m.Password2,
		JoinDate:      m.JoinDate.String(),
		IsPaid:        m.IsPaid,
		PaidAmount:    m.PaidAmount,
		PendingAmount: m.PendingAmount,
		Subscriptions: model.NormalizeSubscriptions(m.Subscriptions),
		IsPushed:      m.IsPushed,
		ActiveTeamID:  m.ActiveTeamID,
	}
}

// TeamsToApp maps a slice of storage rows.
func TeamsToApp(rows []store.TeamRow) []model.Team {
	out := make([]model.Team, len(rows))
	for i, r := range rows {
		out[i] = TeamToApp(r)
	}
	return out
}

// MembersToApp maps a slice of storage rows.
func MembersToApp(rows []store.MemberRow) []model.Member {
	out := make([]model.Member, len(rows))
	for i, r := range rows {
		out[i] = MemberToApp(r)
	}
	return out
}

func str(row map[string]any, field string) string {
	v, _ := Lookup(row, field)
	return asString(v)
}

func optional(row map[string]any, field string) *string {
	return asOptional(Lookup(row, field))
}

func boolean(row map[string]any, field string) bool {
	v, _ := Lookup(row, field)
	return asBool(v)
}

func float(row map[string]any, field string) float64 {
	v, _ := Lookup(row, field)
	return asFloat(v)
}

func owner(row map[string]any, fallback string) string {
	if id := str(row, "owner_id"); id != "" {
		return id
	}
	return fallback
}
