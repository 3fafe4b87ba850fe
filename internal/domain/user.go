package domain

import "time"

type UserId = int64
type Email = string

// Role determines which routes a user may reach.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOfficial Role = "official"
	RoleGeneral  Role = "general"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOfficial, RoleGeneral:
		return true
	}
	return false
}

// PasswordHistoryLimit bounds how many previous password hashes are retained
// per user. Older entries are evicted first.
const PasswordHistoryLimit = 5

type User struct {
	Id           UserId
	Email        Email
	Name         string
	PasswordHash string // empty for federated-identity-only accounts
	Role         Role
	IsVerified   bool
	IsActive     bool

	VerificationCode    string
	VerificationExpires time.Time

	ResetTokenHash string
	ResetExpires   time.Time

	PasswordHistory []string
	CreatedAt       time.Time
}

// PushPasswordHistory appends hash to the history, evicting the oldest entry
// once the bound is reached. Entries are bcrypt hashes, never plaintext.
func (u *User) PushPasswordHistory(hash string) {
	u.PasswordHistory = append(u.PasswordHistory, hash)
	if len(u.PasswordHistory) > PasswordHistoryLimit {
		u.PasswordHistory = u.PasswordHistory[len(u.PasswordHistory)-PasswordHistoryLimit:]
	}
}

type Credentials struct {
	Email    Email
	Password string
}
