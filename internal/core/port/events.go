package port

import (
	"context"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
)

// EventPublisher publishes authentication events to the message bus.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishCredentialMigrated(ctx context.Context, event domain.CredentialMigratedEvent) error
}
