// Package memory provides an in-process storage driver for the login flow,
// used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository"
)

// Store holds accounts and attempt records in memory.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	attempts map[string]domain.AttemptRecord
	nextID   int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		attempts: make(map[string]domain.AttemptRecord),
		locks:    make(map[string]*sync.Mutex),
	}
}

// SeedAccount inserts or replaces an account, assigning an ID when missing.
func (s *Store) SeedAccount(account domain.Account) (domain.Account, error) {
	if strings.TrimSpace(account.Alias) == "" {
		return domain.Account{}, fmt.Errorf("seed account: alias is required")
	}
	if account.Status == "" {
		account.Status = domain.AccountStatusActive
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == 0 {
		s.nextID++
		account.ID = s.nextID
	} else if account.ID > s.nextID {
		s.nextID = account.ID
	}
	s.accounts[account.Alias] = account
	return account, nil
}

// Accounts returns the account store view.
func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{store: s}
}

// Attempts returns the attempt ledger view.
func (s *Store) Attempts() *AttemptRepository {
	return &AttemptRepository{store: s}
}

// WithinAttemptTx serializes fn against other calls for the same alias. Writes made
// through the supplied stores are applied only when fn returns nil.
func (s *Store) WithinAttemptTx(ctx context.Context, alias string, fn func(accounts port.AccountStore, attempts port.AttemptLedger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.aliasLock(alias)
	lock.Lock()
	defer lock.Unlock()

	tx := &txState{
		store:    s,
		accounts: make(map[string]domain.Account),
		attempts: make(map[string]domain.AttemptRecord),
	}

	if err := fn(&AccountRepository{store: s, tx: tx}, &AttemptRepository{store: s, tx: tx}); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (s *Store) aliasLock(alias string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[alias]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[alias] = lock
	}
	return lock
}

type txState struct {
	store    *Store
	accounts map[string]domain.Account
	attempts map[string]domain.AttemptRecord
}

func (t *txState) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for alias, account := range t.accounts {
		t.store.accounts[alias] = account
	}
	for alias, record := range t.attempts {
		t.store.attempts[alias] = record
	}
}

func (s *Store) readAccount(tx *txState, alias string) (domain.Account, bool) {
	if tx != nil {
		if account, ok := tx.accounts[alias]; ok {
			return account, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[alias]
	return account, ok
}

func (s *Store) writeAccount(tx *txState, account domain.Account) {
	if tx != nil {
		tx.accounts[account.Alias] = account
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Alias] = account
}

// AccountRepository implements port.AccountStore.
type AccountRepository struct {
	store *Store
	tx    *txState
}

var _ port.AccountStore = (*AccountRepository)(nil)

// FindByAlias returns the account registered under alias.
func (r *AccountRepository) FindByAlias(ctx context.Context, alias string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, ok := r.store.readAccount(r.tx, alias)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &account, nil
}

// UpdateCredential replaces the stored credential for alias.
func (r *AccountRepository) UpdateCredential(ctx context.Context, alias string, credential string) error {
	return r.update(ctx, alias, func(account *domain.Account) {
		account.Credential = credential
	})
}

// UpdateStatus sets the lifecycle status for alias.
func (r *AccountRepository) UpdateStatus(ctx context.Context, alias string, status domain.AccountStatus) error {
	return r.update(ctx, alias, func(account *domain.Account) {
		account.Status = status
	})
}

func (r *AccountRepository) update(ctx context.Context, alias string, mutate func(*domain.Account)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	account, ok := r.store.readAccount(r.tx, alias)
	if !ok {
		return repository.ErrNotFound
	}
	mutate(&account)
	r.store.writeAccount(r.tx, account)
	return nil
}

// AttemptRepository implements port.AttemptLedger.
type AttemptRepository struct {
	store *Store
	tx    *txState
}

var _ port.AttemptLedger = (*AttemptRepository)(nil)

// FindByAlias returns the attempt record for alias.
func (r *AttemptRepository) FindByAlias(ctx context.Context, alias string) (*domain.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.tx != nil {
		if record, ok := r.tx.attempts[alias]; ok {
			return cloneRecord(record), nil
		}
	}

	r.store.mu.RLock()
	record, ok := r.store.attempts[alias]
	r.store.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRecord(record), nil
}

// Upsert inserts or replaces the record keyed by its alias.
func (r *AttemptRepository) Upsert(ctx context.Context, record domain.AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.Alias == "" {
		return fmt.Errorf("upsert attempt record: alias is required")
	}
	record = *cloneRecord(record)
	if r.tx != nil {
		r.tx.attempts[record.Alias] = record
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.attempts[record.Alias] = record
	return nil
}

func cloneRecord(record domain.AttemptRecord) *domain.AttemptRecord {
	out := record
	if record.LockedAt != nil {
		at := *record.LockedAt
		out.LockedAt = &at
	}
	if record.LastSuccessAt != nil {
		at := *record.LastSuccessAt
		out.LastSuccessAt = &at
	}
	return &out
}
