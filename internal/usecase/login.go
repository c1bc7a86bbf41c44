package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/logger"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository"
)

const tracerName = "github.com/azo221017m-hub/webposcrumen-sub000/internal/usecase"

var (
	// ErrMissingCredentials indicates the alias or secret was not supplied.
	ErrMissingCredentials = errors.New("alias and secret are required")
	// ErrInvalidCredentials indicates the alias is unknown or the secret did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserBlocked indicates the account was locked by earlier failures.
	ErrUserBlocked = errors.New("user is blocked")
	// ErrUserInactive indicates the account is neither active nor blocked.
	ErrUserInactive = errors.New("user is inactive")
	// ErrInternal indicates a store or infrastructure failure.
	ErrInternal = errors.New("internal error")
)

var kindSentinels = map[domain.LoginErrorKind]error{
	domain.LoginErrorMissingCredentials: ErrMissingCredentials,
	domain.LoginErrorInvalidCredentials: ErrInvalidCredentials,
	domain.LoginErrorUserBlocked:        ErrUserBlocked,
	domain.LoginErrorUserInactive:       ErrUserInactive,
	domain.LoginErrorInternal:           ErrInternal,
}

// LoginError carries the classified outcome of a failed login and, for internal errors, the cause.
type LoginError struct {
	Kind domain.LoginErrorKind
	Err  error
}

func newLoginError(kind domain.LoginErrorKind, cause error) *LoginError {
	return &LoginError{Kind: kind, Err: cause}
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Message returns the client-safe description of the outcome.
func (e *LoginError) Message() string {
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		return sentinel.Error()
	}
	return ErrInternal.Error()
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is / errors.As.
func (e *LoginError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrorKind classifies any error returned by LoginService.Login.
func ErrorKind(err error) domain.LoginErrorKind {
	if err == nil {
		return ""
	}
	var loginErr *LoginError
	if errors.As(err, &loginErr) {
		return loginErr.Kind
	}
	return domain.LoginErrorInternal
}

// LoginInput is the credential pair submitted by a caller.
type LoginInput struct {
	Alias  string
	Secret string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Account            domain.AccountView
	Authorization      domain.Authorization
	CredentialMigrated bool
}

// LoginMetrics captures telemetry hooks for login outcomes.
type LoginMetrics interface {
	ObserveLogin(outcome string, duration time.Duration)
	IncLockout()
	IncMigration()
}

type noopLoginMetrics struct{}

func (noopLoginMetrics) ObserveLogin(string, time.Duration) {}
func (noopLoginMetrics) IncLockout()                        {}
func (noopLoginMetrics) IncMigration()                      {}

// LoginService verifies credentials, tracks consecutive failures and migrates legacy credentials.
type LoginService struct {
	accounts port.AccountStore
	withinTx port.AttemptTxFunc
	verifier port.CredentialVerifier
	policy   domain.LockoutPolicy
	events   port.EventPublisher
	metrics  LoginMetrics
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewLoginService constructs the login orchestrator.
func NewLoginService(accounts port.AccountStore, withinTx port.AttemptTxFunc, verifier port.CredentialVerifier, policy domain.LockoutPolicy) *LoginService {
	return &LoginService{
		accounts: accounts,
		withinTx: withinTx,
		verifier: verifier,
		policy:   policy,
		metrics:  noopLoginMetrics{},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// WithLogger attaches a structured logger.
func (s *LoginService) WithLogger(logger *zap.Logger) *LoginService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithEventPublisher wires the auth event publisher.
func (s *LoginService) WithEventPublisher(events port.EventPublisher) *LoginService {
	s.events = events
	return s
}

// WithMetrics wires telemetry observers for login outcomes.
func (s *LoginService) WithMetrics(metrics LoginMetrics) *LoginService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithTracer overrides the OpenTelemetry tracer.
func (s *LoginService) WithTracer(tracer trace.Tracer) *LoginService {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *LoginService) WithNow(now func() time.Time) *LoginService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login runs the credential check for input and returns the authenticated account.
// Every failure is a *LoginError.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "LoginService.Login")
	defer span.End()

	started := time.Now()
	result, loginErr := s.login(ctx, input)

	outcome := domain.LoginOutcomeSuccess
	if loginErr != nil {
		outcome = string(loginErr.Kind)
	}
	s.metrics.ObserveLogin(outcome, time.Since(started))
	span.SetAttributes(attribute.String("login.outcome", outcome))

	fields := []zap.Field{
		zap.String("alias", logger.MaskAlias(input.Alias)),
		zap.String("outcome", outcome),
	}

	if loginErr == nil {
		s.logger.Info("login succeeded", append(fields, zap.Bool("credential_migrated", result.CredentialMigrated))...)
		return result, nil
	}

	if loginErr.Kind == domain.LoginErrorInternal {
		span.RecordError(loginErr.Err)
		span.SetStatus(codes.Error, "login failed with internal error")
		s.logger.Error("login failed", append(fields, zap.Error(loginErr.Err))...)
	} else {
		s.logger.Warn("login rejected", fields...)
	}

	return nil, loginErr
}

func (s *LoginService) login(ctx context.Context, input LoginInput) (*LoginResult, *LoginError) {
	if input.Alias == "" || input.Secret == "" {
		return nil, newLoginError(domain.LoginErrorMissingCredentials, nil)
	}

	account, err := s.accounts.FindByAlias(ctx, input.Alias)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newLoginError(domain.LoginErrorInvalidCredentials, nil)
		}
		return nil, newLoginError(domain.LoginErrorInternal, fmt.Errorf("lookup account: %w", err))
	}

	if kind, ok := statusGate(account.Status); !ok {
		return nil, newLoginError(kind, nil)
	}

	verdict := s.verifier.Verify(input.Secret, account.Credential)
	if !verdict.Matched {
		return nil, s.recordFailure(ctx, account)
	}

	return s.recordSuccess(ctx, account, input.Secret, verdict)
}

func statusGate(status domain.AccountStatus) (domain.LoginErrorKind, bool) {
	switch status {
	case domain.AccountStatusActive:
		return "", true
	case domain.AccountStatusBlocked:
		return domain.LoginErrorUserBlocked, false
	default:
		return domain.LoginErrorUserInactive, false
	}
}

func (s *LoginService) recordFailure(ctx context.Context, account *domain.Account) *LoginError {
	var (
		record domain.AttemptRecord
		locked bool
		gone   bool
	)

	err := s.withinTx(ctx, account.Alias, func(accounts port.AccountStore, attempts port.AttemptLedger) error {
		current, err := accounts.FindByAlias(ctx, account.Alias)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				gone = true
				return nil
			}
			return fmt.Errorf("lock account: %w", err)
		}

		existing, err := attempts.FindByAlias(ctx, account.Alias)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("load attempt record: %w", err)
			}
			existing = nil
		}

		decision := s.policy.OnFailure(existing)
		now := s.now().UTC()

		record = domain.AttemptRecord{
			Alias:        current.Alias,
			BusinessID:   current.BusinessID,
			FailureCount: decision.FailureCount,
			UpdatedAt:    now,
		}
		if existing != nil {
			record.LockedAt = existing.LockedAt
			record.LastSuccessAt = existing.LastSuccessAt
		}

		if decision.ShouldLock {
			locked = current.Status != domain.AccountStatusBlocked
			if locked || record.LockedAt == nil {
				record.LockedAt = &now
			}
		}

		if err := attempts.Upsert(ctx, record); err != nil {
			return fmt.Errorf("upsert attempt record: %w", err)
		}

		if locked {
			if err := accounts.UpdateStatus(ctx, current.Alias, domain.AccountStatusBlocked); err != nil {
				return fmt.Errorf("block account: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return newLoginError(domain.LoginErrorInternal, err)
	}

	if gone {
		return newLoginError(domain.LoginErrorInvalidCredentials, nil)
	}

	s.publish(ctx, "login_failed", func(events port.EventPublisher) error {
		return events.PublishLoginFailed(ctx, domain.LoginFailedEvent{
			EventID:      uuid.NewString(),
			Alias:        record.Alias,
			BusinessID:   record.BusinessID,
			Kind:         domain.LoginErrorInvalidCredentials,
			FailureCount: record.FailureCount,
			OccurredAt:   record.UpdatedAt,
		})
	})

	if locked {
		s.metrics.IncLockout()
		s.logger.Warn("account blocked after consecutive failures",
			zap.String("alias", logger.MaskAlias(record.Alias)),
			zap.Int("failure_count", record.FailureCount),
			zap.Int("threshold", s.policy.Threshold()),
		)
		s.publish(ctx, "account_locked", func(events port.EventPublisher) error {
			return events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
				EventID:      uuid.NewString(),
				Alias:        record.Alias,
				BusinessID:   record.BusinessID,
				FailureCount: record.FailureCount,
				LockedAt:     *record.LockedAt,
			})
		})
	}

	return newLoginError(domain.LoginErrorInvalidCredentials, nil)
}

func (s *LoginService) recordSuccess(ctx context.Context, account *domain.Account, secret string, verdict port.VerifyResult) (*LoginResult, *LoginError) {
	var (
		current  *domain.Account
		rejected domain.LoginErrorKind
		migrated bool
		record   domain.AttemptRecord
	)

	err := s.withinTx(ctx, account.Alias, func(accounts port.AccountStore, attempts port.AttemptLedger) error {
		var err error
		current, err = accounts.FindByAlias(ctx, account.Alias)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				rejected = domain.LoginErrorInvalidCredentials
				return nil
			}
			return fmt.Errorf("lock account: %w", err)
		}

		// A concurrent attempt may have blocked the account after the status check.
		if kind, ok := statusGate(current.Status); !ok {
			rejected = kind
			return nil
		}

		record = s.policy.OnSuccess(s.now())
		record.Alias = current.Alias
		record.BusinessID = current.BusinessID
		if err := attempts.Upsert(ctx, record); err != nil {
			return fmt.Errorf("reset attempt record: %w", err)
		}

		if !verdict.NeedsMigration || current.Credential != account.Credential {
			return nil
		}

		hashed, err := s.verifier.Migrate(secret)
		if err != nil {
			s.logger.Warn("credential migration skipped",
				zap.String("alias", logger.MaskAlias(current.Alias)),
				zap.Error(err),
			)
			return nil
		}

		if err := accounts.UpdateCredential(ctx, current.Alias, hashed); err != nil {
			return fmt.Errorf("store migrated credential: %w", err)
		}
		current.Credential = hashed
		migrated = true

		return nil
	})
	if err != nil {
		return nil, newLoginError(domain.LoginErrorInternal, err)
	}
	if rejected != "" {
		return nil, newLoginError(rejected, nil)
	}

	if migrated {
		s.metrics.IncMigration()
		s.publish(ctx, "credential_migrated", func(events port.EventPublisher) error {
			return events.PublishCredentialMigrated(ctx, domain.CredentialMigratedEvent{
				EventID:    uuid.NewString(),
				Alias:      current.Alias,
				BusinessID: current.BusinessID,
				Encoding:   verdict.Encoding,
				MigratedAt: record.UpdatedAt,
			})
		})
	}

	s.publish(ctx, "login_succeeded", func(events port.EventPublisher) error {
		return events.PublishLoginSucceeded(ctx, domain.LoginSucceededEvent{
			EventID:            uuid.NewString(),
			Alias:              current.Alias,
			BusinessID:         current.BusinessID,
			RoleID:             current.RoleID,
			CredentialMigrated: migrated,
			OccurredAt:         record.UpdatedAt,
		})
	})

	return &LoginResult{
		Account: current.View(),
		Authorization: domain.Authorization{
			Alias:      current.Alias,
			BusinessID: current.BusinessID,
			RoleID:     current.RoleID,
		},
		CredentialMigrated: migrated,
	}, nil
}

func (s *LoginService) publish(ctx context.Context, name string, fn func(events port.EventPublisher) error) {
	if s.events == nil {
		return
	}
	if err := fn(s.events); err != nil {
		s.logger.Warn("auth event publish failed", zap.String("event", name), zap.Error(err))
	}
}
