package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classhub/identity-service/internal/domain"
)

// TokenRepo persists refresh tokens. One row per issued token; a user
// can hold several live rows at once (one per device/session).
type TokenRepo struct {
	db *sql.DB
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

func (r *TokenRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	if t.UserID == "" {
		return domain.ErrMissingField("user_id")
	}
	if t.Token == "" {
		return domain.ErrMissingField("token")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	const q = `
INSERT INTO refresh_tokens (id, user_id, token, expires_at)
VALUES ($1,$2,$3,$4);
`
	if _, err := r.db.ExecContext(ctx, q, t.ID, t.UserID, t.Token, t.ExpiresAt); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *TokenRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, domain.ErrMissingField("user_id")
	}

	const q = `DELETE FROM refresh_tokens WHERE user_id = $1;`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *TokenRepo) DeleteByToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	const q = `DELETE FROM refresh_tokens WHERE token = $1;`
	res, err := r.db.ExecContext(ctx, q, token)
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM refresh_tokens WHERE expires_at < $1;`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
