package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classhub/identity-service/internal/application/identity"
	"github.com/classhub/identity-service/internal/domain"
	"github.com/classhub/identity-service/internal/transport/http/middleware"
)

// -------------------------
// In-memory ports
// -------------------------

type memUsers struct {
	byID map[string]domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]domain.User{}}
}

func (m *memUsers) find(match func(domain.User) bool) (domain.User, bool) {
	for _, u := range m.byID {
		if match(u) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (m *memUsers) GetByID(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (m *memUsers) GetByAccount(ctx context.Context, account string) (domain.User, error) {
	if u, ok := m.find(func(u domain.User) bool { return u.Account == account }); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if u, ok := m.find(func(u domain.User) bool { return u.Email != "" && u.Email == email }); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (m *memUsers) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	if u, ok := m.find(func(u domain.User) bool { return u.Phone != "" && u.Phone == phone }); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (m *memUsers) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if _, ok := m.find(func(o domain.User) bool { return o.Account == u.Account }); ok {
		return domain.User{}, domain.ErrAccountConflict()
	}
	if u.Email != "" {
		if _, ok := m.find(func(o domain.User) bool { return o.Email == u.Email }); ok {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
	}
	if u.Phone != "" {
		if _, ok := m.find(func(o domain.User) bool { return o.Phone == u.Phone }); ok {
			return domain.User{}, domain.ErrPhoneAlreadyExists()
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) AccountExists(ctx context.Context, account string) (bool, error) {
	_, ok := m.find(func(u domain.User) bool { return u.Account == account })
	return ok, nil
}

func (m *memUsers) EmailExists(ctx context.Context, email, excludeUserID string) (bool, error) {
	_, ok := m.find(func(u domain.User) bool {
		return u.Email != "" && u.Email == email && u.ID != excludeUserID
	})
	return ok, nil
}

func (m *memUsers) PhoneExists(ctx context.Context, phone, excludeUserID string) (bool, error) {
	_, ok := m.find(func(u domain.User) bool {
		return u.Phone != "" && u.Phone == phone && u.ID != excludeUserID
	})
	return ok, nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, userID string, upd identity.ProfileUpdate) error {
	u, ok := m.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	m.byID[userID] = u
	return nil
}

func (m *memUsers) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	u, ok := m.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.PasswordHash = newHash
	m.byID[userID] = u
	return nil
}

func (m *memUsers) SetRole(ctx context.Context, userID string, role string) error {
	u, ok := m.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Role = role
	m.byID[userID] = u
	return nil
}

func (m *memUsers) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	u, ok := m.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Status = status
	m.byID[userID] = u
	return nil
}

func (m *memUsers) Delete(ctx context.Context, userID string) error {
	if _, ok := m.byID[userID]; !ok {
		return domain.ErrUserNotFound()
	}
	delete(m.byID, userID)
	return nil
}

func (m *memUsers) List(ctx context.Context, q identity.ListQuery) ([]domain.User, int, error) {
	var out []domain.User
	for _, u := range m.byID {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if q.Status != "" && string(u.Status) != q.Status {
			continue
		}
		if q.Account != "" && u.Account != q.Account {
			continue
		}
		if q.Keyword != "" && !strings.Contains(u.Username, q.Keyword) {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memUsers) RecordFailedAttempt(ctx context.Context, account string, now time.Time, threshold int, lockFor time.Duration) (bool, error) {
	u, ok := m.find(func(u domain.User) bool { return u.Account == account })
	if !ok {
		return false, domain.ErrUserNotFound()
	}
	u.FailedAttempts++
	locked := false
	if u.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		u.LockedUntil = &until
		locked = true
	}
	m.byID[u.ID] = u
	return locked, nil
}

func (m *memUsers) ResetFailedAttempts(ctx context.Context, account string) error {
	u, ok := m.find(func(u domain.User) bool { return u.Account == account })
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) CheckLock(ctx context.Context, account string, now time.Time) (bool, error) {
	u, ok := m.find(func(u domain.User) bool { return u.Account == account })
	if !ok {
		return false, domain.ErrUserNotFound()
	}
	if u.LockedUntil == nil {
		return false, nil
	}
	if u.LockedUntil.After(now) {
		return true, nil
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	m.byID[u.ID] = u
	return false, nil
}

type memTokens struct {
	byToken map[string]domain.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{byToken: map[string]domain.RefreshToken{}}
}

func (m *memTokens) Create(ctx context.Context, t domain.RefreshToken) error {
	m.byToken[t.Token] = t
	return nil
}

func (m *memTokens) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	for tok, t := range m.byToken {
		if t.UserID == userID {
			delete(m.byToken, tok)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteByToken(ctx context.Context, token string) (bool, error) {
	if _, ok := m.byToken[token]; !ok {
		return false, nil
	}
	delete(m.byToken, token)
	return true, nil
}

func (m *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for tok, t := range m.byToken {
		if t.Expired(now) {
			delete(m.byToken, tok)
			n++
		}
	}
	return n, nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (plainHasher) Compare(hash string, password string) error {
	if hash == "h:"+password {
		return nil
	}
	return errors.New("mismatch")
}

type stubSigner struct{}

func (stubSigner) SignAccessToken(u domain.User, ttl time.Duration) (string, error) {
	return fmt.Sprintf("at(%s)", u.ID), nil
}

func (stubSigner) VerifyAccessToken(token string) (identity.AccessClaims, error) {
	return identity.AccessClaims{}, domain.ErrTokenInvalid()
}

type nullPublisher struct{}

func (nullPublisher) PublishUserRegistered(ctx context.Context, evt identity.UserRegisteredEvent) error {
	return nil
}

func (nullPublisher) PublishAccountLocked(ctx context.Context, evt identity.AccountLockedEvent) error {
	return nil
}

func (nullPublisher) PublishUserDeleted(ctx context.Context, evt identity.UserDeletedEvent) error {
	return nil
}

// -------------------------
// Wiring + request helpers
// -------------------------

func newTestService(t *testing.T) (*identity.Service, *memUsers, *memTokens) {
	t.Helper()
	users := newMemUsers()
	tokens := newMemTokens()
	svc := identity.NewService(users, tokens, plainHasher{}, stubSigner{}, nullPublisher{}, identity.Config{})
	return svc, users, tokens
}

func seedUser(users *memUsers, u domain.User) domain.User {
	if u.Role == "" {
		u.Role = string(domain.RoleStudent)
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	users.byID[u.ID] = u
	return u
}

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

// mustReadData decodes the "data" field of the standard envelope into out.
func mustReadData(t *testing.T, r io.Reader, out any) {
	t.Helper()
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	wrapped := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		t.Fatalf("decode envelope failed; body=%s", string(raw))
	}
	if !wrapped.Success {
		t.Fatalf("expected success envelope; body=%s", string(raw))
	}
	if err := json.Unmarshal(wrapped.Data, out); err != nil {
		t.Fatalf("decode data failed; body=%s err=%v", string(raw), err)
	}
}

// mustReadErrorCode extracts the machine code from a failure envelope.
func mustReadErrorCode(t *testing.T, r io.Reader) string {
	t.Helper()
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}{}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error body failed; body=%s", string(raw))
	}
	if body.Success {
		t.Fatalf("expected failure envelope; body=%s", string(raw))
	}
	return body.Code
}

// withUserCtx injects the auth-middleware identity into the request context.
func withUserCtx(req *http.Request, userID, account, role string) *http.Request {
	ctx := middleware.WithUser(req.Context(), userID, account, role)
	return req.WithContext(ctx)
}

// withURLParam injects a chi URL param (e.g. /users/{id}) into the request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}
