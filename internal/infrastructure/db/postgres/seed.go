package postgres

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/classhub/identity-service/internal/domain"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

type SeederRepo interface {
	AccountExists(ctx context.Context, account string) (bool, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
}

// SeedSuperAdmin guarantees the reserved account exists with the
// super_admin role. Restart safe: an existing row is left untouched,
// password included.
func SeedSuperAdmin(ctx context.Context, repo SeederRepo, hasher SeederHasher, password string) {
	exists, err := repo.AccountExists(ctx, domain.ReservedAccount)
	if err != nil {
		log.Printf("[seed] super admin check failed: %v", err)
		return
	}
	if exists {
		return
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		log.Printf("[seed] hash failed: %v", err)
		return
	}

	u := domain.User{
		ID:           uuid.NewString(),
		Account:      domain.ReservedAccount,
		PasswordHash: hash,
		Username:     "admin",
		Role:         string(domain.RoleSuperAdmin),
		Status:       domain.StatusActive,
	}

	if _, err := repo.Create(ctx, u); err != nil {
		// a concurrent replica may have won the insert; that's fine
		if domain.Is(err, "account_conflict") {
			return
		}
		log.Printf("[seed] super admin create failed: %v", err)
		return
	}

	log.Println("[seed] super admin account created")
}
