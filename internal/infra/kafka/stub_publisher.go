package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

var _ port.EventPublisher = (*StubPublisher)(nil)

func (p *StubPublisher) logEvent(eventType, alias string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}

	p.logger.Info("stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("alias", logger.MaskAlias(alias)),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logEvent(EventLoginSucceeded, event.Alias, event.OccurredAt,
		zap.Int64("business_id", event.BusinessID),
		zap.Bool("credential_migrated", event.CredentialMigrated),
	)
	return nil
}

// PublishLoginFailed logs auth.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.logEvent(EventLoginFailed, event.Alias, event.OccurredAt,
		zap.String("error_kind", string(event.Kind)),
		zap.Int("failure_count", event.FailureCount),
	)
	return nil
}

// PublishAccountLocked logs auth.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.logEvent(EventAccountLocked, event.Alias, event.LockedAt,
		zap.Int("failure_count", event.FailureCount),
	)
	return nil
}

// PublishCredentialMigrated logs auth.credential.migrated events.
func (p *StubPublisher) PublishCredentialMigrated(_ context.Context, event domain.CredentialMigratedEvent) error {
	p.logEvent(EventCredentialMigrated, event.Alias, event.MigratedAt,
		zap.String("from_encoding", string(event.Encoding)),
	)
	return nil
}
