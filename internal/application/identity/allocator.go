package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/classhub/identity-service/internal/domain"
)

// allocMaxAttempts bounds the trial-and-error loop. The loop only reduces
// collision probability; the store's UNIQUE constraint on account is the
// real correctness backstop, with Register re-allocating on a violation.
const allocMaxAttempts = 100

// AccountChecker is the slice of UserRepo the allocator needs.
type AccountChecker interface {
	AccountExists(ctx context.Context, account string) (bool, error)
}

// AccountAllocator produces fixed-width numeric account identifiers,
// sampled uniformly from the full space minus the reserved super-admin
// value, and pre-checked against the store.
type AccountAllocator struct {
	users       AccountChecker
	maxAttempts int

	// randomAccount is swappable in tests
	randomAccount func() (string, error)
}

func NewAccountAllocator(users AccountChecker) *AccountAllocator {
	return &AccountAllocator{
		users:         users,
		maxAttempts:   allocMaxAttempts,
		randomAccount: randomAccount,
	}
}

// Generate returns an unused, non-reserved account number or
// ErrCapacityExhausted after the retry bound.
func (a *AccountAllocator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		account, err := a.randomAccount()
		if err != nil {
			return "", domain.ErrRandomFailed(err)
		}
		if account == domain.ReservedAccount {
			continue
		}

		exists, err := a.users.AccountExists(ctx, account)
		if err != nil {
			return "", err
		}
		if !exists {
			return account, nil
		}
	}
	return "", domain.ErrCapacityExhausted()
}

var accountSpace = big.NewInt(1_000_000)

func randomAccount() (string, error) {
	n, err := rand.Int(rand.Reader, accountSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", domain.AccountLength, n), nil
}
