package domain

import "time"

// ReservedAccount is the fixed super-admin account. It is seeded once,
// never produced by the allocator, and protected from role/status/delete
// mutations.
const ReservedAccount = "000000"

// AccountLength is the fixed width of externally-facing account numbers.
const AccountLength = 6

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

func IsValidStatus(s string) bool {
	return s == string(StatusActive) || s == string(StatusDisabled)
}

type User struct {
	ID             string
	Account        string
	PasswordHash   string
	Username       string
	Email          string // optional; unique when present
	Phone          string // optional; unique when present
	Role           string
	Avatar         string
	Status         Status
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsReserved reports whether this row is the seeded super-admin account.
func (u User) IsReserved() bool {
	return u.Account == ReservedAccount
}

// RefreshToken is a server-tracked opaque session credential. Rows are
// created at login, deleted at logout, explicit revocation, or the expiry
// sweep; deleting the owning user cascades.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
