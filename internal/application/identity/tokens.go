package identity

import (
	"context"
	"strings"

	"github.com/classhub/identity-service/internal/domain"
)

// Logout revokes every refresh token owned by the user. Idempotent: a
// second call finds nothing left and still succeeds with count 0. Access
// tokens already issued stay valid until their natural expiry.
func (s *Service) Logout(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrMissingField("user_id")
	}
	n, err := s.tokens.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.audit("identity.logout", map[string]string{"user_id": userID})
	return n, nil
}

// RevokeRefreshToken deletes a single refresh-token row; reports whether
// anything was deleted.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.tokens.DeleteByToken(ctx, token)
}

// SweepExpiredTokens deletes all refresh tokens past their expiry. Meant
// to run on a schedule, not per-request.
func (s *Service) SweepExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

// ValidateAccess verifies an access token's signature and expiry only.
// The access token is stateless: it cannot be revoked early, so logout
// narrows the ability to obtain new tokens, not the validity of issued
// ones.
func (s *Service) ValidateAccess(token string) (AccessClaims, error) {
	if strings.TrimSpace(token) == "" {
		return AccessClaims{}, domain.ErrTokenMissing()
	}
	return s.signer.VerifyAccessToken(token)
}
