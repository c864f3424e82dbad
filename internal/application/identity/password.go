package identity

import (
	"context"

	"github.com/classhub/identity-service/internal/domain"
)

// ChangePassword verifies the old password against the stored hash,
// enforces the minimum new-password length, persists the new hash, and
// revokes all sessions.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if userID == "" {
		return domain.ErrTokenMissing()
	}
	if oldPassword == "" || newPassword == "" {
		return domain.ErrInvalidField("password", "empty")
	}
	if err := validateNewPassword(newPassword); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(u.PasswordHash, oldPassword); err != nil {
		return domain.ErrInvalidCredentials()
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.ErrHashFailed(err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return err
	}

	s.audit("identity.password_change", map[string]string{"user_id": userID})

	// Refresh tokens minted with the old password are revoked; issued
	// access tokens ride out their expiry.
	_, _ = s.tokens.DeleteByUser(ctx, userID)
	return nil
}
