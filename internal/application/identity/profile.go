package identity

import (
	"context"

	"github.com/classhub/identity-service/internal/domain"
)

// UpdateProfile applies a partial update: only non-nil fields change.
// Email/phone uniqueness excludes the caller's own row, so re-submitting
// the current value is always allowed.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrMissingField("user_id")
	}

	if upd.Username == nil && upd.Email == nil && upd.Phone == nil && upd.Avatar == nil {
		return s.users.GetByID(ctx, userID)
	}

	if upd.Username != nil {
		if err := validateUsername(*upd.Username); err != nil {
			return domain.User{}, err
		}
	}

	if upd.Email != nil && *upd.Email != "" {
		if err := validateEmail(*upd.Email); err != nil {
			return domain.User{}, err
		}
		taken, err := s.users.EmailExists(ctx, *upd.Email, userID)
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
	}

	if upd.Phone != nil && *upd.Phone != "" {
		if err := validatePhone(*upd.Phone); err != nil {
			return domain.User{}, err
		}
		taken, err := s.users.PhoneExists(ctx, *upd.Phone, userID)
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			return domain.User{}, domain.ErrPhoneAlreadyExists()
		}
	}

	if err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		return domain.User{}, err
	}

	s.audit("identity.profile_update", map[string]string{"user_id": userID})

	return s.users.GetByID(ctx, userID)
}
