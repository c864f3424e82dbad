package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/classhub/identity-service/internal/application/identity"
	"github.com/classhub/identity-service/internal/domain"
)

const userColumns = `id, account, password_hash, username, email, phone, role, avatar, status, failed_attempts, locked_until, created_at, updated_at`

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepo) scanUserRow(row *sql.Row) (userRow, error) {
	var ur userRow
	err := row.Scan(
		&ur.ID,
		&ur.Account,
		&ur.PasswordHash,
		&ur.Username,
		&ur.Email,
		&ur.Phone,
		&ur.Role,
		&ur.Avatar,
		&ur.Status,
		&ur.FailedAttempts,
		&ur.LockedUntil,
		&ur.CreatedAt,
		&ur.UpdatedAt,
	)
	return ur, err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// mapUniqueViolation translates a 23505 into the conflicting field's
// domain error so Register can retry allocation or report a duplicate.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "account"):
		return domain.ErrAccountConflict()
	case strings.Contains(pgErr.ConstraintName, "email"):
		return domain.ErrEmailAlreadyExists()
	case strings.Contains(pgErr.ConstraintName, "phone"):
		return domain.ErrPhoneAlreadyExists()
	default:
		return domain.ErrAccountConflict()
	}
}

// ---------- identity.UserRepo ----------

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}

	q := `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1;
`
	ur, err := r.scanUserRow(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) GetByAccount(ctx context.Context, account string) (domain.User, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return domain.User{}, domain.ErrMissingField("account")
	}

	q := `
SELECT ` + userColumns + `
FROM users
WHERE account = $1
LIMIT 1;
`
	ur, err := r.scanUserRow(r.db.QueryRowContext(ctx, q, account))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	q := `
SELECT ` + userColumns + `
FROM users
WHERE email = $1
LIMIT 1;
`
	ur, err := r.scanUserRow(r.db.QueryRowContext(ctx, q, email))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.User{}, domain.ErrMissingField("phone")
	}

	q := `
SELECT ` + userColumns + `
FROM users
WHERE phone = $1
LIMIT 1;
`
	ur, err := r.scanUserRow(r.db.QueryRowContext(ctx, q, phone))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Account == "" {
		return domain.User{}, domain.ErrMissingField("account")
	}
	if u.PasswordHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}
	if u.Role == "" {
		u.Role = string(domain.RoleStudent)
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}

	q := `
INSERT INTO users (id, account, password_hash, username, email, phone, role, avatar, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING ` + userColumns + `;
`
	ur, err := r.scanUserRow(r.db.QueryRowContext(ctx, q,
		u.ID, u.Account, u.PasswordHash, u.Username,
		nullStr(u.Email), nullStr(u.Phone),
		u.Role, nullStr(u.Avatar), string(u.Status),
	))
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return domain.User{}, mapped
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) AccountExists(ctx context.Context, account string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE account = $1);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, account).Scan(&exists); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return exists, nil
}

func (r *UserRepo) EmailExists(ctx context.Context, email, excludeUserID string) (bool, error) {
	email = normalizeEmail(email)
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, email, excludeUserID).Scan(&exists); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return exists, nil
}

func (r *UserRepo) PhoneExists(ctx context.Context, phone, excludeUserID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1 AND id <> $2);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, phone, excludeUserID).Scan(&exists); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return exists, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, upd identity.ProfileUpdate) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}

	sets := make([]string, 0, 4)
	args := []any{userID}

	addSet := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Username != nil {
		addSet("username", *upd.Username)
	}
	if upd.Email != nil {
		addSet("email", nullStr(normalizeEmail(*upd.Email)))
	}
	if upd.Phone != nil {
		addSet("phone", nullStr(*upd.Phone))
	}
	if upd.Avatar != nil {
		addSet("avatar", nullStr(*upd.Avatar))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1;`, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}
	if newHash == "" {
		return domain.ErrMissingField("password_hash")
	}

	const q = `
UPDATE users
SET password_hash = $2,
    updated_at = NOW()
WHERE id = $1;
`
	res, err := r.db.ExecContext(ctx, q, userID, newHash)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) SetRole(ctx context.Context, userID string, role string) error {
	userID = strings.TrimSpace(userID)
	role = strings.TrimSpace(role)

	if userID == "" {
		return domain.ErrMissingField("user_id")
	}
	if !domain.IsValidRole(role) {
		return domain.ErrInvalidRole(role)
	}

	const q = `
UPDATE users
SET role = $2,
    updated_at = NOW()
WHERE id = $1;
`
	res, err := r.db.ExecContext(ctx, q, userID, role)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}
	if !domain.IsValidStatus(string(status)) {
		return domain.ErrInvalidStatus(string(status))
	}

	const q = `
UPDATE users
SET status = $2,
    updated_at = NOW()
WHERE id = $1;
`
	res, err := r.db.ExecContext(ctx, q, userID, string(status))
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}

	// refresh_tokens rows go with the user via the FK cascade
	const q = `DELETE FROM users WHERE id = $1;`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context, lq identity.ListQuery) ([]domain.User, int, error) {
	where := []string{"1=1"}
	args := []any{}

	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if lq.Account != "" {
		add("account = $%d", lq.Account)
	}
	if lq.Role != "" {
		add("role = $%d", lq.Role)
	}
	if lq.Status != "" {
		add("status = $%d", lq.Status)
	}
	if lq.Keyword != "" {
		add("username ILIKE $%d", "%"+lq.Keyword+"%")
	}

	cond := strings.Join(where, " AND ")

	countQ := fmt.Sprintf(`SELECT COUNT(1) FROM users WHERE %s;`, cond)
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, domain.ErrDBUnavailable(err)
	}

	offset := (lq.Page - 1) * lq.PageSize
	listQ := fmt.Sprintf(`
SELECT %s
FROM users
WHERE %s
ORDER BY created_at DESC
LIMIT %d OFFSET %d;
`, userColumns, cond, lq.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, 0, domain.ErrDBUnavailable(err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var ur userRow
		if err := rows.Scan(
			&ur.ID, &ur.Account, &ur.PasswordHash, &ur.Username,
			&ur.Email, &ur.Phone, &ur.Role, &ur.Avatar, &ur.Status,
			&ur.FailedAttempts, &ur.LockedUntil, &ur.CreatedAt, &ur.UpdatedAt,
		); err != nil {
			return nil, 0, domain.ErrDBUnavailable(err)
		}
		out = append(out, toDomainUser(ur))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.ErrDBUnavailable(err)
	}
	return out, total, nil
}

// ---------- lockout ----------

// RecordFailedAttempt is the whole lockout transition in one statement:
// increment, and set locked_until iff the new count reaches the
// threshold. Single-statement means two concurrent failures cannot both
// read the same counter.
func (r *UserRepo) RecordFailedAttempt(ctx context.Context, account string, now time.Time, threshold int, lockFor time.Duration) (bool, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return false, domain.ErrMissingField("account")
	}

	const q = `
UPDATE users
SET failed_attempts = failed_attempts + 1,
    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3::timestamptz ELSE locked_until END,
    updated_at = NOW()
WHERE account = $1
RETURNING failed_attempts >= $2;
`
	var locked bool
	err := r.db.QueryRowContext(ctx, q, account, threshold, now.Add(lockFor)).Scan(&locked)
	if err != nil {
		if isNoRows(err) {
			return false, domain.ErrUserNotFound()
		}
		return false, domain.ErrDBUnavailable(err)
	}
	return locked, nil
}

func (r *UserRepo) ResetFailedAttempts(ctx context.Context, account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return domain.ErrMissingField("account")
	}

	const q = `
UPDATE users
SET failed_attempts = 0,
    locked_until = NULL,
    updated_at = NOW()
WHERE account = $1;
`
	res, err := r.db.ExecContext(ctx, q, account)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

// CheckLock reports whether the account is inside its lock window and
// lazily clears an elapsed one.
func (r *UserRepo) CheckLock(ctx context.Context, account string, now time.Time) (bool, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return false, domain.ErrMissingField("account")
	}

	const q = `SELECT locked_until FROM users WHERE account = $1 LIMIT 1;`

	var until sql.NullTime
	if err := r.db.QueryRowContext(ctx, q, account).Scan(&until); err != nil {
		if isNoRows(err) {
			return false, domain.ErrUserNotFound()
		}
		return false, domain.ErrDBUnavailable(err)
	}

	if !until.Valid {
		return false, nil
	}
	if until.Time.After(now) {
		return true, nil
	}

	// Window elapsed: reset so the next failure starts a fresh count.
	// Guarded on locked_until so a lock set concurrently between the
	// SELECT and this UPDATE survives.
	const clearQ = `
UPDATE users
SET failed_attempts = 0,
    locked_until = NULL,
    updated_at = NOW()
WHERE account = $1
  AND locked_until IS NOT NULL
  AND locked_until <= $2;
`
	if _, err := r.db.ExecContext(ctx, clearQ, account, now); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return false, nil
}
