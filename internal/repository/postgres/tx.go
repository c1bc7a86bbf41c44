package postgres

import (
	"context"
	"fmt"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
)

// TxRunner executes attempt bookkeeping inside a single PostgreSQL transaction.
type TxRunner struct {
	db       pgxDB
	accounts *AccountRepository
	attempts *AttemptRepository
}

// NewTxRunner wires the runner over db and the repositories it binds per transaction.
func NewTxRunner(db pgxDB, accounts *AccountRepository, attempts *AttemptRepository) *TxRunner {
	return &TxRunner{db: db, accounts: accounts, attempts: attempts}
}

// WithinAttemptTx satisfies port.AttemptTxFunc. Concurrent calls for the same alias
// are serialized by the row lock taken on the first account lookup.
func (r *TxRunner) WithinAttemptTx(ctx context.Context, _ string, fn func(accounts port.AccountStore, attempts port.AttemptLedger) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin attempt tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(r.accounts.WithTx(tx), r.attempts.WithTx(tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit attempt tx: %w", err)
	}

	return nil
}
