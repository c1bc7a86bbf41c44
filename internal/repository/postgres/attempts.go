package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository"
)

const attemptsTable = "pos.login_attempts"

// AttemptRepository implements port.AttemptLedger using PostgreSQL.
type AttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAttemptRepository constructs the ledger from a generic executor.
func NewAttemptRepository(exec pgExecutor) *AttemptRepository {
	return &AttemptRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx binds the repository to execute statements within the supplied transaction.
func (r *AttemptRepository) WithTx(tx pgx.Tx) *AttemptRepository {
	if tx == nil {
		return r
	}
	return &AttemptRepository{
		exec:    tx,
		builder: r.builder,
	}
}

var _ port.AttemptLedger = (*AttemptRepository)(nil)

// FindByAlias retrieves the attempt record for alias.
func (r *AttemptRepository) FindByAlias(ctx context.Context, alias string) (*domain.AttemptRecord, error) {
	stmt, args, err := r.builder.
		Select(
			"alias",
			"business_id",
			"failure_count",
			"locked_at",
			"last_success_at",
			"updated_at",
		).
		From(attemptsTable).
		Where(squirrel.Eq{"alias": alias}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select attempt record sql: %w", err)
	}

	var (
		record        domain.AttemptRecord
		lockedAt      *time.Time
		lastSuccessAt *time.Time
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&record.Alias,
		&record.BusinessID,
		&record.FailureCount,
		&lockedAt,
		&lastSuccessAt,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan attempt record: %w", err)
	}

	record.LockedAt = lockedAt
	record.LastSuccessAt = lastSuccessAt

	return &record, nil
}

// Upsert inserts the record or replaces the existing row for its alias.
func (r *AttemptRepository) Upsert(ctx context.Context, record domain.AttemptRecord) error {
	if record.Alias == "" {
		return fmt.Errorf("alias is required")
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.Insert(attemptsTable).
		Columns(
			"alias",
			"business_id",
			"failure_count",
			"locked_at",
			"last_success_at",
			"updated_at",
		).
		Values(
			record.Alias,
			record.BusinessID,
			record.FailureCount,
			record.LockedAt,
			record.LastSuccessAt,
			updatedAt,
		).
		Suffix(`ON CONFLICT (alias) DO UPDATE SET
			business_id = EXCLUDED.business_id,
			failure_count = EXCLUDED.failure_count,
			locked_at = EXCLUDED.locked_at,
			last_success_at = EXCLUDED.last_success_at,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert attempt record sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert attempt record: %w", err)
	}

	return nil
}
