package identity

import (
	"context"
	"time"

	"github.com/classhub/identity-service/internal/domain"
)

/*
UserRepo
--------
Persistence port for users.
Only describes WHAT the identity service needs, not HOW it's stored.

The store is the sole arbiter of uniqueness: account, email and phone
carry UNIQUE constraints and Create maps violations to the matching
conflict errors. The lockout mutations are single-statement atomic
read-modify-writes against the user row.
*/
type UserRepo interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByAccount(ctx context.Context, account string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)

	Create(ctx context.Context, u domain.User) (domain.User, error)
	AccountExists(ctx context.Context, account string) (bool, error)
	EmailExists(ctx context.Context, email, excludeUserID string) (bool, error)
	PhoneExists(ctx context.Context, phone, excludeUserID string) (bool, error)

	// Updates needed by business flows
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
	SetRole(ctx context.Context, userID string, role string) error
	SetStatus(ctx context.Context, userID string, status domain.Status) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context, q ListQuery) ([]domain.User, int, error)

	// Lockout state machine. RecordFailedAttempt increments
	// failed_attempts and sets locked_until when the new value reaches
	// threshold, in one atomic statement; it reports whether the account
	// is now locked. CheckLock lazily clears an elapsed lock window.
	RecordFailedAttempt(ctx context.Context, account string, now time.Time, threshold int, lockFor time.Duration) (bool, error)
	ResetFailedAttempts(ctx context.Context, account string) error
	CheckLock(ctx context.Context, account string, now time.Time) (bool, error)
}

// ProfileUpdate is a partial update: nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Phone    *string
	Avatar   *string
}

// ListQuery filters and paginates the admin user listing.
type ListQuery struct {
	Account  string
	Keyword  string // fuzzy match on username
	Role     string
	Status   string
	Page     int
	PageSize int
}

/*
TokenStore
----------
Refresh-token rows. Backed by the relational store; rows are the only
revocable session state (access tokens are stateless).
*/
type TokenStore interface {
	Create(ctx context.Context, t domain.RefreshToken) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

/*
PasswordHasher
--------------
Abstracts the one-way hashing primitive (bcrypt).
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenSigner
-----------
Issues and verifies access tokens (JWT).
Used by service + auth middleware.
*/
type AccessClaims struct {
	UserID  string
	Account string
	Email   string
	Role    string
	Exp     time.Time
}

type TokenSigner interface {
	SignAccessToken(u domain.User, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (AccessClaims, error)
}

/*
EventPublisher
--------------
Publishes identity lifecycle events to the message broker.
Downstream services (mailer, audit sink) consume them; this service
never sends email directly.
*/
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, evt UserRegisteredEvent) error
	PublishAccountLocked(ctx context.Context, evt AccountLockedEvent) error
	PublishUserDeleted(ctx context.Context, evt UserDeletedEvent) error
}

type UserRegisteredEvent struct {
	UserID  string
	Account string
	Email   string
	Role    string
}

type AccountLockedEvent struct {
	UserID      string
	Account     string
	LockedUntil time.Time
}

type UserDeletedEvent struct {
	UserID  string
	Account string
}
