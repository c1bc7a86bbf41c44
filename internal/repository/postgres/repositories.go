package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts *AccountRepository
	Attempts *AttemptRepository
	Tx       *TxRunner
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(db pgxDB) *Repositories {
	accounts := NewAccountRepository(db)
	attempts := NewAttemptRepository(db)
	return &Repositories{
		Accounts: accounts,
		Attempts: attempts,
		Tx:       NewTxRunner(db, accounts, attempts),
	}
}
