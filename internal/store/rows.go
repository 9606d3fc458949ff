package store

import "time"

// Table names a local table that mirrors a remote collection.
type Table string

const (
	TableTeams   Table = "teams"
	TableMembers Table = "members"
)

// TeamRow is the storage shape of a team. JSON tags are the column names,
// which the remote collection shares.
type TeamRow struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Name         string     `json:"name"`
	AdminEmail   string     `json:"admin_email"`
	Logo         *string    `json:"logo,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastBackupAt *time.Time `json:"last_backup_at,omitempty"`
	IsYearly     bool       `json:"is_yearly"`
	IsPlus       bool       `json:"is_plus"`
}

// Columns returns the row as column name -> value.
func (t TeamRow) Columns() map[string]any {
	cols := map[string]any{
		"id":             t.ID,
		"owner_id":       t.OwnerID,
		"name":           t.Name,
		"admin_email":    t.AdminEmail,
		"logo":           nil,
		"created_at":     t.CreatedAt.UTC(),
		"last_backup_at": nil,
		"is_yearly":      t.IsYearly,
		"is_plus":        t.IsPlus,
	}
	if t.Logo != nil {
		cols["logo"] = *t.Logo
	}
	if t.LastBackupAt != nil {
		cols["last_backup_at"] = t.LastBackupAt.UTC()
	}
	return cols
}

// MemberRow is the storage shape of a member. JoinDate is kept as the
// YYYY-MM-DD string it is stored as.
type MemberRow struct {
	ID            string   `json:"id"`
	TeamID        string   `json:"team_id"`
	OwnerID       string   `json:"owner_id"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Telegram      *string  `json:"telegram,omitempty"`
	TwoFASecret   *string  `json:"two_fa_secret,omitempty"`
	Password      *string  `json:"password,omitempty"`
	Password2     *string  `json:"password2,omitempty"`
	JoinDate      string   `json:"join_date"`
	IsPaid        bool     `json:"is_paid"`
	PaidAmount    float64  `json:"paid_amount"`
	PendingAmount float64  `json:"pending_amount"`
	Subscriptions []string `json:"subscriptions"`
	IsPushed      bool     `json:"is_pushed"`
	ActiveTeamID  *string  `json:"active_team_id,omitempty"`
}

// Columns returns the row as column name -> value.
func (m MemberRow) Columns() map[string]any {
	subs := m.Subscriptions
	if subs == nil {
		subs = []string{}
	}
	cols := map[string]any{
		"id":             m.ID,
		"team_id":        m.TeamID,
		"owner_id":       m.OwnerID,
		"email":          m.Email,
		"phone":          m.Phone,
		"telegram":       derefOrNil(m.Telegram),
		"two_fa_secret":  derefOrNil(m.TwoFASecret),
		"password":       derefOrNil(m.Password),
		"password2":      derefOrNil(m.Password2),
		"join_date":      nil,
		"is_paid":        m.IsPaid,
		"paid_amount":    m.PaidAmount,
		"pending_amount": m.PendingAmount,
		"subscriptions":  subs,
		"is_pushed":      m.IsPushed,
		"active_team_id": derefOrNil(m.ActiveTeamID),
	}
	if m.JoinDate != "" {
		cols["join_date"] = m.JoinDate
	}
	return cols
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
