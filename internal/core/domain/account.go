package domain

import "time"

// AccountStatus enumerates persisted account states.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusBlocked  AccountStatus = "blocked"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID         int64
	Alias      string
	Credential string
	Status     AccountStatus
	BusinessID int64
	RoleID     int64
}

// AccountView is an Account stripped of its credential.
type AccountView struct {
	ID         int64
	Alias      string
	Status     AccountStatus
	BusinessID int64
	RoleID     int64
}

// View returns the account without its credential.
func (a Account) View() AccountView {
	return AccountView{
		ID:         a.ID,
		Alias:      a.Alias,
		Status:     a.Status,
		BusinessID: a.BusinessID,
		RoleID:     a.RoleID,
	}
}

// Authorization is the context handed back to callers after a successful login.
type Authorization struct {
	Alias      string
	BusinessID int64
	RoleID     int64
}

// AttemptRecord tracks consecutive login failures for an alias.
type AttemptRecord struct {
	Alias         string
	BusinessID    int64
	FailureCount  int
	LockedAt      *time.Time
	LastSuccessAt *time.Time
	UpdatedAt     time.Time
}
