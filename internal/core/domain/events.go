package domain

import "time"

// LoginSucceededEvent represents the payload for pos.auth.login.succeeded messages.
type LoginSucceededEvent struct {
	EventID            string
	Alias              string
	BusinessID         int64
	RoleID             int64
	CredentialMigrated bool
	OccurredAt         time.Time
}

// LoginFailedEvent represents the payload for pos.auth.login.failed messages.
type LoginFailedEvent struct {
	EventID      string
	Alias        string
	BusinessID   int64
	Kind         LoginErrorKind
	FailureCount int
	OccurredAt   time.Time
}

// AccountLockedEvent represents the payload for pos.auth.account.locked messages.
type AccountLockedEvent struct {
	EventID      string
	Alias        string
	BusinessID   int64
	FailureCount int
	LockedAt     time.Time
}

// CredentialMigratedEvent represents the payload for pos.auth.credential.migrated messages.
type CredentialMigratedEvent struct {
	EventID    string
	Alias      string
	BusinessID int64
	Encoding   CredentialEncoding
	MigratedAt time.Time
}
