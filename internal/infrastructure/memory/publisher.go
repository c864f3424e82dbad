package memory

import (
	"context"
	"log"

	"github.com/classhub/identity-service/internal/application/identity"
)

// NoopPublisher stands in when no broker is configured (dev, tests).
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishUserRegistered(ctx context.Context, evt identity.UserRegisteredEvent) error {
	log.Printf("[noop-pub] user registered: user_id=%s account=%s role=%s", evt.UserID, evt.Account, evt.Role)
	return nil
}

func (p *NoopPublisher) PublishAccountLocked(ctx context.Context, evt identity.AccountLockedEvent) error {
	log.Printf("[noop-pub] account locked: user_id=%s account=%s until=%s", evt.UserID, evt.Account, evt.LockedUntil)
	return nil
}

func (p *NoopPublisher) PublishUserDeleted(ctx context.Context, evt identity.UserDeletedEvent) error {
	log.Printf("[noop-pub] user deleted: user_id=%s account=%s", evt.UserID, evt.Account)
	return nil
}
