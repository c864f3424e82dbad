package postgres

import (
	"database/sql"
	"time"

	"github.com/classhub/identity-service/internal/domain"
)

type userRow struct {
	ID             string
	Account        string
	PasswordHash   string
	Username       string
	Email          sql.NullString
	Phone          sql.NullString
	Role           string
	Avatar         sql.NullString
	Status         string
	FailedAttempts int
	LockedUntil    sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func toDomainUser(ur userRow) domain.User {
	u := domain.User{
		ID:             ur.ID,
		Account:        ur.Account,
		PasswordHash:   ur.PasswordHash,
		Username:       ur.Username,
		Email:          ur.Email.String,
		Phone:          ur.Phone.String,
		Role:           ur.Role,
		Avatar:         ur.Avatar.String,
		Status:         domain.Status(ur.Status),
		FailedAttempts: ur.FailedAttempts,
		CreatedAt:      ur.CreatedAt,
		UpdatedAt:      ur.UpdatedAt,
	}
	if ur.LockedUntil.Valid {
		t := ur.LockedUntil.Time
		u.LockedUntil = &t
	}
	return u
}

// nullStr maps "" to NULL so the partial UNIQUE indexes on email/phone
// ignore absent values.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
