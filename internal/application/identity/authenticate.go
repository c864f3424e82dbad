package identity

import (
	"context"
	"strings"

	"github.com/classhub/identity-service/internal/domain"
)

type AuthResult struct {
	User   domain.User
	Tokens AuthTokens
}

// Authenticate verifies credentials and issues tokens.
// IMPORTANT: must not leak whether the email exists (avoid user enumeration).
//
// Lock handling: the lock status is checked first (lazily clearing an
// elapsed window), a password mismatch records a failed attempt, and the
// attempt that reaches the threshold reports locked itself — no grace
// attempt.
func (s *Service) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)

	if email == "" || password == "" {
		return AuthResult{}, domain.ErrInvalidCredentials()
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Hide not-found behind invalid credentials. A store outage is
		// not a credential failure and passes through unchanged.
		if domain.Is(err, "user_not_found") {
			return AuthResult{}, domain.ErrInvalidCredentials()
		}
		return AuthResult{}, err
	}

	locked, err := s.users.CheckLock(ctx, u.Account, s.now())
	if err != nil {
		return AuthResult{}, err
	}
	if locked {
		return AuthResult{}, domain.ErrAccountLocked()
	}

	if u.Status == domain.StatusDisabled {
		return AuthResult{}, domain.ErrAccountDisabled()
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return AuthResult{}, s.recordFailedLogin(ctx, u)
	}

	if err := s.users.ResetFailedAttempts(ctx, u.Account); err != nil {
		return AuthResult{}, err
	}

	toks, err := s.issueTokens(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}

	s.audit("identity.login", map[string]string{
		"user_id": u.ID,
		"account": u.Account,
	})

	return AuthResult{User: u, Tokens: toks}, nil
}

// recordFailedLogin applies the lockout transition and maps the outcome to
// the caller-facing error: Locked when this attempt tripped the threshold,
// invalid credentials otherwise.
func (s *Service) recordFailedLogin(ctx context.Context, u domain.User) error {
	now := s.now()
	locked, err := s.users.RecordFailedAttempt(ctx, u.Account, now, s.lockThreshold, s.lockDuration)
	if err != nil {
		return err
	}
	if !locked {
		return domain.ErrInvalidCredentials()
	}

	s.audit("identity.account_locked", map[string]string{
		"user_id": u.ID,
		"account": u.Account,
	})
	_ = s.pub.PublishAccountLocked(ctx, AccountLockedEvent{
		UserID:      u.ID,
		Account:     u.Account,
		LockedUntil: now.Add(s.lockDuration),
	})
	return domain.ErrAccountLocked()
}
