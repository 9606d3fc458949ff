package mapper

// Aliases lists, per logical field, the names the field has been stored
// under, canonical name first. Lookup takes the first candidate present
// with a non-nil value.
//
// Older clients wrote camelCase keys, and the two-factor secret moved
// through several names before settling on two_fa_secret.
var Aliases = map[string][]string{
	"id":       {"id"},
	"owner_id": {"owner_id", "ownerId", "user_id", "userId"},
	"team_id":  {"team_id", "teamId"},

	// teams
	"name":           {"name", "team_name", "teamName"},
	"admin_email":    {"admin_email", "adminEmail"},
	"logo":           {"logo", "logo_url", "logoUrl"},
	"created_at":     {"created_at", "createdAt"},
	"last_backup_at": {"last_backup_at", "lastBackupAt", "last_backup", "lastBackup"},
	"is_yearly":      {"is_yearly", "isYearly", "yearly"},
	"is_plus":        {"is_plus", "isPlus", "plus"},

	// members
	"email":          {"email"},
	"phone":          {"phone", "phone_number", "phoneNumber"},
	"telegram":       {"telegram", "telegram_username", "telegramUsername"},
	"two_fa_secret":  {"two_fa_secret", "twoFaSecret", "two_factor_secret", "twoFactorSecret", "totp_secret", "secret"},
	"password":       {"password"},
	"password2":      {"password2", "password_2", "second_password", "secondPassword"},
	"join_date":      {"join_date", "joinDate", "joined_at", "joinedAt"},
	"is_paid":        {"is_paid", "isPaid", "paid"},
	"paid_amount":    {"paid_amount", "paidAmount", "amount"},
	"pending_amount": {"pending_amount", "pendingAmount"},
	"subscriptions":  {"subscriptions", "subscription_types", "subscriptionTypes"},
	"is_pushed":      {"is_pushed", "isPushed", "pushed"},
	"active_team_id": {"active_team_id", "activeTeamId"},
}

// Candidates returns the names tried for field, in priority order. Fields
// with no alias entry are looked up by their own name.
func Candidates(field string) []string {
	if names, ok := Aliases[field]; ok {
		return names
	}
	return []string{field}
}

// Lookup returns the value of field in row, trying each candidate name in
// order. Candidates present with a nil value are skipped.
func Lookup(row map[string]any, field string) (any, bool) {
	for _, name := range Candidates(field) {
		if v, ok := row[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
