package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository"
)

var accountColumns = []string{"id", "alias", "credential", "status", "business_id", "role_id"}

func TestAccountRepository_FindByAlias(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT id, alias, credential, status, business_id, role_id FROM pos\.accounts WHERE alias = \$1$`).
		WithArgs("cajero01").
		WillReturnRows(pgxmock.NewRows(accountColumns).
			AddRow(int64(7), "cajero01", "1234", "active", int64(3), int64(2)))

	account, err := repo.FindByAlias(context.Background(), "cajero01")
	if err != nil {
		t.Fatalf("FindByAlias returned error: %v", err)
	}
	if account.ID != 7 || account.Status != domain.AccountStatusActive || account.BusinessID != 3 || account.RoleID != 2 {
		t.Fatalf("unexpected account %+v", account)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByAliasNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`FROM pos\.accounts`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.FindByAlias(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateCredential(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectExec(`UPDATE pos\.accounts SET credential = \$1, updated_at = NOW\(\) WHERE alias = \$2`).
		WithArgs("$2a$12$hash", "cajero01").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateCredential(context.Background(), "cajero01", "$2a$12$hash"); err != nil {
		t.Fatalf("UpdateCredential returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateStatusMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectExec(`UPDATE pos\.accounts SET status = \$1`).
		WithArgs(domain.AccountStatusBlocked, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateStatus(context.Background(), "ghost", domain.AccountStatusBlocked); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_WithTxNilKeepsExecutor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	if got := repo.WithTx(nil); got != repo {
		t.Fatal("WithTx(nil) must return the receiver")
	}
	if got := NewAttemptRepository(mock); got.WithTx(nil) != got {
		t.Fatal("attempt WithTx(nil) must return the receiver")
	}

	mock.ExpectQuery(`SELECT id, alias, credential, status, business_id, role_id FROM pos\.accounts WHERE alias = \$1$`).
		WithArgs("suspendido").
		WillReturnRows(pgxmock.NewRows(accountColumns).
			AddRow(int64(9), "suspendido", "pw", "suspended", int64(3), int64(2)))

	account, err := repo.WithTx(nil).FindByAlias(context.Background(), "suspendido")
	if err != nil {
		t.Fatalf("FindByAlias returned error: %v", err)
	}
	if account.Status != domain.AccountStatus("suspended") {
		t.Fatalf("expected unlisted status to round-trip, got %q", account.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
