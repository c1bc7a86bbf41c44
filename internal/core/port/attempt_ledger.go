package port

import (
	"context"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
)

// AttemptLedger persists per-alias consecutive failure counters.
type AttemptLedger interface {
	FindByAlias(ctx context.Context, alias string) (*domain.AttemptRecord, error)
	Upsert(ctx context.Context, record domain.AttemptRecord) error
}

// AttemptTxFunc runs fn with stores bound to a single transaction that serializes
// concurrent attempts for the same alias. The account row is locked by the first
// FindByAlias issued through the supplied AccountStore.
type AttemptTxFunc func(ctx context.Context, alias string, fn func(accounts AccountStore, attempts AttemptLedger) error) error
