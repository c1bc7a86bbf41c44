package port

import (
	"context"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
)

// AccountStore exposes the account fields the login flow reads and mutates.
type AccountStore interface {
	FindByAlias(ctx context.Context, alias string) (*domain.Account, error)
	UpdateCredential(ctx context.Context, alias string, credential string) error
	UpdateStatus(ctx context.Context, alias string, status domain.AccountStatus) error
}
