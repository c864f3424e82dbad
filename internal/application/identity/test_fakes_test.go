package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/classhub/identity-service/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID map[string]domain.User

	// injected errors (if set, method returns error)
	getErr    error
	createErr error
	updateErr error
	listErr   error

	// createHook, when set, runs before Create's normal logic; a non-nil
	// return short-circuits. Lets tests script per-call outcomes.
	createHook func() error

	deletedIDs []string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]domain.User{}}
}

func (f *fakeUserRepo) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) find(match func(domain.User) bool) (domain.User, bool) {
	for _, u := range f.byID {
		if match(u) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.User{}, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) GetByAccount(ctx context.Context, account string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.User{}, f.getErr
	}
	if u, ok := f.find(func(u domain.User) bool { return u.Account == account }); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.User{}, f.getErr
	}
	if u, ok := f.find(func(u domain.User) bool { return u.Email != "" && u.Email == email }); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.User{}, f.getErr
	}
	if u, ok := f.find(func(u domain.User) bool { return u.Phone != "" && u.Phone == phone }); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	if f.createHook != nil {
		if err := f.createHook(); err != nil {
			return domain.User{}, err
		}
	}
	// mirror the store's unique constraints
	if _, ok := f.find(func(o domain.User) bool { return o.Account == u.Account }); ok {
		return domain.User{}, domain.ErrAccountConflict()
	}
	if u.Email != "" {
		if _, ok := f.find(func(o domain.User) bool { return o.Email == u.Email }); ok {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
	}
	if u.Phone != "" {
		if _, ok := f.find(func(o domain.User) bool { return o.Phone == u.Phone }); ok {
			return domain.User{}, domain.ErrPhoneAlreadyExists()
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) AccountExists(ctx context.Context, account string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.find(func(u domain.User) bool { return u.Account == account })
	return ok, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, email, excludeUserID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.find(func(u domain.User) bool {
		return u.Email != "" && u.Email == email && u.ID != excludeUserID
	})
	return ok, nil
}

func (f *fakeUserRepo) PhoneExists(ctx context.Context, phone, excludeUserID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.find(func(u domain.User) bool {
		return u.Phone != "" && u.Phone == phone && u.ID != excludeUserID
	})
	return ok, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[userID]
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
	u.UpdatedAt = time.Now()
	f.byID[userID] = u
	return nil
}

func (f *fakeUserRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.PasswordHash = newHash
	f.byID[userID] = u
	return nil
}

func (f *fakeUserRepo) SetRole(ctx context.Context, userID string, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Role = role
	f.byID[userID] = u
	return nil
}

func (f *fakeUserRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Status = status
	f.byID[userID] = u
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[userID]; !ok {
		return domain.ErrUserNotFound()
	}
	delete(f.byID, userID)
	f.deletedIDs = append(f.deletedIDs, userID)
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, q ListQuery) ([]domain.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []domain.User
	for _, u := range f.byID {
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

// RecordFailedAttempt mirrors the store's single-statement transition:
// increment, and lock when the new count reaches the threshold.
func (f *fakeUserRepo) RecordFailedAttempt(ctx context.Context, account string, now time.Time, threshold int, lockFor time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.find(func(u domain.User) bool { return u.Account == account })
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
	f.byID[u.ID] = u
	return locked, nil
}

func (f *fakeUserRepo) ResetFailedAttempts(ctx context.Context, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.find(func(u domain.User) bool { return u.Account == account })
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) CheckLock(ctx context.Context, account string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.find(func(u domain.User) bool { return u.Account == account })
	if !ok {
		return false, domain.ErrUserNotFound()
	}
	if u.LockedUntil == nil {
		return false, nil
	}
	if u.LockedUntil.After(now) {
		return true, nil
	}
	// elapsed: lazy reset
	u.FailedAttempts = 0
	u.LockedUntil = nil
	f.byID[u.ID] = u
	return false, nil
}

type fakeTokens struct {
	mu sync.Mutex

	byToken map[string]domain.RefreshToken

	createErr error
	deleteErr error
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byToken: map[string]domain.RefreshToken{}}
}

func (f *fakeTokens) Create(ctx context.Context, t domain.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.byToken[t.Token] = t
	return nil
}

func (f *fakeTokens) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	for tok, t := range f.byToken {
		if t.UserID == userID {
			delete(f.byToken, tok)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) DeleteByToken(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	if _, ok := f.byToken[token]; !ok {
		return false, nil
	}
	delete(f.byToken, token)
	return true, nil
}

func (f *fakeTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	for tok, t := range f.byToken {
		if t.Expired(now) {
			delete(f.byToken, tok)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) countFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.byToken {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

type fakeHasher struct {
	hashFn    func(pw string) (string, error)
	compareFn func(hash, pw string) error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Compare(hash string, password string) error {
	if h.compareFn != nil {
		return h.compareFn(hash, password)
	}
	if hash == "hash:"+password {
		return nil
	}
	return errors.New("mismatch")
}

type fakeSigner struct {
	signFn func(u domain.User, ttl time.Duration) (string, error)
}

func (s *fakeSigner) SignAccessToken(u domain.User, ttl time.Duration) (string, error) {
	if s.signFn != nil {
		return s.signFn(u, ttl)
	}
	return fmt.Sprintf("jwt(%s,%s)", u.ID, u.Role), nil
}

func (s *fakeSigner) VerifyAccessToken(token string) (AccessClaims, error) {
	return AccessClaims{}, domain.ErrTokenInvalid()
}

type fakePublisher struct {
	mu sync.Mutex

	registered []UserRegisteredEvent
	locked     []AccountLockedEvent
	deleted    []UserDeletedEvent
}

func (p *fakePublisher) PublishUserRegistered(ctx context.Context, evt UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, evt)
	return nil
}

func (p *fakePublisher) PublishAccountLocked(ctx context.Context, evt AccountLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, evt)
	return nil
}

func (p *fakePublisher) PublishUserDeleted(ctx context.Context, evt UserDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, evt)
	return nil
}

/*
Service factory for tests
*/

type testClock struct {
	mu  sync.Mutex
	t   time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newSvcForTest(t *testing.T) (*Service, *fakeUserRepo, *fakeTokens, *fakeHasher, *fakePublisher, *testClock) {
	t.Helper()

	users := newFakeUserRepo()
	tokens := newFakeTokens()
	hasher := &fakeHasher{}
	signer := &fakeSigner{}
	pub := &fakePublisher{}
	clock := newTestClock()

	svc := NewService(users, tokens, hasher, signer, pub, Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		LockThreshold: 5,
		LockDuration:  30 * time.Minute,
	}).WithClock(clock.Now)

	return svc, users, tokens, hasher, pub, clock
}

// seedUser inserts a user straight into the fake repo.
func seedUser(users *fakeUserRepo, u domain.User) domain.User {
	if u.Role == "" {
		u.Role = string(domain.RoleStudent)
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	users.put(u)
	return u
}

/*
Small assertions
*/

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	got := domainCode(err)
	if got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}
