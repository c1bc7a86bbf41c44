package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository"
)

const accountsTable = "pos.accounts"

// AccountRepository implements port.AccountStore using PostgreSQL.
type AccountRepository struct {
	exec      pgExecutor
	builder   squirrel.StatementBuilderType
	forUpdate bool
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
// Lookups through the returned repository lock the account row until the transaction ends.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		exec:      tx,
		builder:   r.builder,
		forUpdate: true,
	}
}

var _ port.AccountStore = (*AccountRepository)(nil)

// FindByAlias retrieves the account registered under alias.
func (r *AccountRepository) FindByAlias(ctx context.Context, alias string) (*domain.Account, error) {
	query := r.builder.
		Select(
			"id",
			"alias",
			"credential",
			"status",
			"business_id",
			"role_id",
		).
		From(accountsTable).
		Where(squirrel.Eq{"alias": alias})
	if r.forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	var account domain.Account
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&account.ID,
		&account.Alias,
		&account.Credential,
		&account.Status,
		&account.BusinessID,
		&account.RoleID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &account, nil
}

// UpdateCredential replaces the stored credential for alias.
func (r *AccountRepository) UpdateCredential(ctx context.Context, alias string, credential string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("credential", credential).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"alias": alias}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update credential sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateStatus sets the lifecycle status for alias.
func (r *AccountRepository) UpdateStatus(ctx context.Context, alias string, status domain.AccountStatus) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"alias": alias}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
