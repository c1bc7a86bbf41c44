package domain

import "time"

// DefaultLockoutThreshold is the number of consecutive failures that blocks an account.
const DefaultLockoutThreshold = 3

// LockoutPolicy decides how the failure counter evolves.
type LockoutPolicy struct {
	threshold int
}

// FailureDecision is the outcome of applying the policy to a failed attempt.
type FailureDecision struct {
	FailureCount int
	ShouldLock   bool
}

// NewLockoutPolicy constructs a policy, falling back to DefaultLockoutThreshold for non-positive values.
func NewLockoutPolicy(threshold int) LockoutPolicy {
	if threshold < 1 {
		threshold = DefaultLockoutThreshold
	}
	return LockoutPolicy{threshold: threshold}
}

// Threshold returns the configured lockout threshold.
func (p LockoutPolicy) Threshold() int {
	if p.threshold < 1 {
		return DefaultLockoutThreshold
	}
	return p.threshold
}

// OnFailure computes the next failure count given the current record, if any.
func (p LockoutPolicy) OnFailure(existing *AttemptRecord) FailureDecision {
	count := 1
	if existing != nil {
		count = existing.FailureCount + 1
	}
	return FailureDecision{
		FailureCount: count,
		ShouldLock:   count >= p.Threshold(),
	}
}

// OnSuccess returns the reset ledger state for a successful login at now.
func (p LockoutPolicy) OnSuccess(now time.Time) AttemptRecord {
	at := now.UTC()
	return AttemptRecord{
		FailureCount:  0,
		LockedAt:      nil,
		LastSuccessAt: &at,
		UpdatedAt:     at,
	}
}
