package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/classhub/identity-service/internal/domain"
)

const (
	defaultAccessTTL     = time.Hour
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultLockThreshold = 5
	defaultLockDuration  = 30 * time.Minute
)

type Service struct {
	users  UserRepo
	tokens TokenStore
	hasher PasswordHasher
	signer TokenSigner
	alloc  *AccountAllocator
	pub    EventPublisher

	accessTTL     time.Duration
	refreshTTL    time.Duration
	lockThreshold int
	lockDuration  time.Duration

	now   func() time.Time
	audit func(action string, fields map[string]string)
}

type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	LockThreshold int
	LockDuration  time.Duration
}

func NewService(
	users UserRepo,
	tokens TokenStore,
	hasher PasswordHasher,
	signer TokenSigner,
	pub EventPublisher,
	cfg Config,
) *Service {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	threshold := cfg.LockThreshold
	if threshold <= 0 {
		threshold = defaultLockThreshold
	}
	lockFor := cfg.LockDuration
	if lockFor <= 0 {
		lockFor = defaultLockDuration
	}

	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		signer: signer,
		alloc:  NewAccountAllocator(users),
		pub:    pub,

		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		lockThreshold: threshold,
		lockDuration:  lockFor,

		now:   time.Now,
		audit: func(string, map[string]string) {},
	}
}

// WithClock overrides the service clock. Tests use this to drive the
// lock window without sleeping.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// AuthTokens is the common token output for handlers/DTO mapping.
type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64  // seconds
	TokenType    string // "Bearer"
}

// issueTokens signs an access token and persists a new refresh-token row.
// Prior refresh tokens for the same user stay valid.
func (s *Service) issueTokens(ctx context.Context, u domain.User) (AuthTokens, error) {
	access, err := s.signer.SignAccessToken(u, s.accessTTL)
	if err != nil {
		return AuthTokens{}, domain.ErrTokenSignFailed(err)
	}

	refresh, err := newOpaqueToken(32)
	if err != nil {
		return AuthTokens{}, domain.ErrRandomFailed(err)
	}

	row := domain.RefreshToken{
		UserID:    u.ID,
		Token:     refresh,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// newOpaqueToken returns a URL-safe opaque token.
func newOpaqueToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		return "", errors.New("invalid token length")
	}
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
