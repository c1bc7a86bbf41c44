package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, prefixed with the configured topic prefix on the wire.
const (
	EventLoginSucceeded     = "auth.login.succeeded"
	EventLoginFailed        = "auth.login.failed"
	EventAccountLocked      = "auth.account.locked"
	EventCredentialMigrated = "auth.credential.migrated"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

var _ port.EventPublisher = (*EventPublisher)(nil)

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Alias     string            `json:"alias"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// publish keys messages by alias so every event for an account lands on one partition in order.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, alias string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		Alias:     alias,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(alias),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		BusinessID         int64     `json:"business_id"`
		RoleID             int64     `json:"role_id"`
		CredentialMigrated bool      `json:"credential_migrated"`
		OccurredAt         time.Time `json:"occurred_at"`
	}{
		BusinessID:         event.BusinessID,
		RoleID:             event.RoleID,
		CredentialMigrated: event.CredentialMigrated,
		OccurredAt:         event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLoginSucceeded, event.Alias, event.OccurredAt, payload)
}

// PublishLoginFailed publishes auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		BusinessID   int64     `json:"business_id"`
		ErrorKind    string    `json:"error_kind"`
		FailureCount int       `json:"failure_count"`
		OccurredAt   time.Time `json:"occurred_at"`
	}{
		BusinessID:   event.BusinessID,
		ErrorKind:    string(event.Kind),
		FailureCount: event.FailureCount,
		OccurredAt:   event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLoginFailed, event.Alias, event.OccurredAt, payload)
}

// PublishAccountLocked publishes auth.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		BusinessID   int64     `json:"business_id"`
		FailureCount int       `json:"failure_count"`
		LockedAt     time.Time `json:"locked_at"`
	}{
		BusinessID:   event.BusinessID,
		FailureCount: event.FailureCount,
		LockedAt:     event.LockedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountLocked, event.Alias, event.LockedAt, payload)
}

// PublishCredentialMigrated publishes auth.credential.migrated events.
func (p *EventPublisher) PublishCredentialMigrated(ctx context.Context, event domain.CredentialMigratedEvent) error {
	payload := struct {
		BusinessID   int64     `json:"business_id"`
		FromEncoding string    `json:"from_encoding"`
		MigratedAt   time.Time `json:"migrated_at"`
	}{
		BusinessID:   event.BusinessID,
		FromEncoding: string(event.Encoding),
		MigratedAt:   event.MigratedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventCredentialMigrated, event.Alias, event.MigratedAt, payload)
}
