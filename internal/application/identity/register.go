package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/classhub/identity-service/internal/domain"
)

// accountInsertRetries bounds re-allocation when a concurrent registration
// wins the race on the account UNIQUE constraint.
const accountInsertRetries = 3

// Register creates a user with a freshly allocated account, the default
// lowest-privilege role and active status.
func (s *Service) Register(ctx context.Context, username, password, email, phone string) (domain.User, error) {
	if username == "" || password == "" {
		return domain.User{}, domain.ErrMissingField("username/password")
	}
	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if err := validateNewPassword(password); err != nil {
		return domain.User{}, err
	}
	if email != "" {
		if err := validateEmail(email); err != nil {
			return domain.User{}, err
		}
	}
	if phone != "" {
		if err := validatePhone(phone); err != nil {
			return domain.User{}, err
		}
	}

	return s.createUser(ctx, username, password, string(domain.RoleStudent), email, phone)
}

// createUser is shared by Register and AdminCreateUser. The pre-insert
// duplicate checks give friendly errors; the store's UNIQUE constraints
// stay authoritative under concurrent inserts.
func (s *Service) createUser(ctx context.Context, username, password, role, email, phone string) (domain.User, error) {
	if email != "" {
		taken, err := s.users.EmailExists(ctx, email, "")
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
	}
	if phone != "" {
		taken, err := s.users.PhoneExists(ctx, phone, "")
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			return domain.User{}, domain.ErrPhoneAlreadyExists()
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, domain.ErrHashFailed(err)
	}

	var created domain.User
	for attempt := 0; ; attempt++ {
		account, err := s.alloc.Generate(ctx)
		if err != nil {
			return domain.User{}, err
		}

		u := domain.User{
			ID:           uuid.NewString(),
			Account:      account,
			PasswordHash: hash,
			Username:     username,
			Email:        email,
			Phone:        phone,
			Role:         role,
			Status:       domain.StatusActive,
		}

		created, err = s.users.Create(ctx, u)
		if err == nil {
			break
		}
		// Lost the allocation race: another insert claimed the account
		// between our existence check and the insert. Re-allocate.
		if domain.Is(err, "account_conflict") && attempt < accountInsertRetries-1 {
			continue
		}
		return domain.User{}, err
	}

	s.audit("identity.register", map[string]string{
		"user_id": created.ID,
		"account": created.Account,
		"role":    created.Role,
	})

	_ = s.pub.PublishUserRegistered(ctx, UserRegisteredEvent{
		UserID:  created.ID,
		Account: created.Account,
		Email:   created.Email,
		Role:    created.Role,
	})

	return created, nil
}
