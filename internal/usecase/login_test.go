package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/security"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository/memory"
)

type recordingPublisher struct {
	mu        sync.Mutex
	succeeded []domain.LoginSucceededEvent
	failed    []domain.LoginFailedEvent
	locked    []domain.AccountLockedEvent
	migrated  []domain.CredentialMigratedEvent
	err       error
}

func (p *recordingPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.succeeded = append(p.succeeded, event)
	return p.err
}

func (p *recordingPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
	return p.err
}

func (p *recordingPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, event)
	return p.err
}

func (p *recordingPublisher) PublishCredentialMigrated(_ context.Context, event domain.CredentialMigratedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.migrated = append(p.migrated, event)
	return p.err
}

type countingMetrics struct {
	mu         sync.Mutex
	outcomes   map[string]int
	lockouts   int
	migrations int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{outcomes: make(map[string]int)}
}

func (m *countingMetrics) ObserveLogin(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *countingMetrics) IncLockout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockouts++
}

func (m *countingMetrics) IncMigration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrations++
}

type failingAccounts struct {
	err error
}

func (f failingAccounts) FindByAlias(context.Context, string) (*domain.Account, error) {
	return nil, f.err
}

func (f failingAccounts) UpdateCredential(context.Context, string, string) error {
	return f.err
}

func (f failingAccounts) UpdateStatus(context.Context, string, domain.AccountStatus) error {
	return f.err
}

type stubVerifier struct {
	result     port.VerifyResult
	migrateErr error
}

func (s stubVerifier) Verify(string, string) port.VerifyResult {
	return s.result
}

func (s stubVerifier) Migrate(string) (string, error) {
	if s.migrateErr != nil {
		return "", s.migrateErr
	}
	return "$2a$04$abcdefghijklmnopqrstuuJ1Y0bq9uQ2d5c3m2j4Fq1Z7L7m8Xx3e", nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	service   *LoginService
	events    *recordingPublisher
	metrics   *countingMetrics
	verifier  *security.CredentialVerifier
	threshold int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	verifier, err := security.NewCredentialVerifier(security.CredentialOptions{
		Scheme:     security.SchemeBcrypt,
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	store := memory.NewStore()
	events := &recordingPublisher{}
	metrics := newCountingMetrics()
	policy := domain.NewLockoutPolicy(domain.DefaultLockoutThreshold)

	service := NewLoginService(store.Accounts(), store.WithinAttemptTx, verifier, policy).
		WithLogger(zaptest.NewLogger(t)).
		WithEventPublisher(events).
		WithMetrics(metrics).
		WithNow(func() time.Time { return fixedNow })

	return &fixture{
		store:     store,
		service:   service,
		events:    events,
		metrics:   metrics,
		verifier:  verifier,
		threshold: policy.Threshold(),
	}
}

func (f *fixture) seed(t *testing.T, account domain.Account) domain.Account {
	t.Helper()
	seeded, err := f.store.SeedAccount(account)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return seeded
}

func (f *fixture) hash(t *testing.T, secret string) string {
	t.Helper()
	hashed, err := f.verifier.Migrate(secret)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hashed
}

func (f *fixture) attempts(t *testing.T, alias string) *domain.AttemptRecord {
	t.Helper()
	record, err := f.store.Attempts().FindByAlias(context.Background(), alias)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("load attempts: %v", err)
	}
	return record
}

func (f *fixture) account(t *testing.T, alias string) *domain.Account {
	t.Helper()
	account, err := f.store.Accounts().FindByAlias(context.Background(), alias)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account
}

func assertKind(t *testing.T, err error, want domain.LoginErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", want)
	}
	if got := ErrorKind(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	f := newFixture(t)
	f.service.accounts = failingAccounts{err: errors.New("must not be called")}

	for _, input := range []LoginInput{{}, {Alias: "ana"}, {Secret: "pw"}} {
		_, err := f.service.Login(context.Background(), input)
		assertKind(t, err, domain.LoginErrorMissingCredentials)
		if !errors.Is(err, ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials sentinel, got %v", err)
		}
	}
}

func TestLoginUnknownAliasLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Login(context.Background(), LoginInput{Alias: "ghost", Secret: "pw"})
	assertKind(t, err, domain.LoginErrorInvalidCredentials)

	if record := f.attempts(t, "ghost"); record != nil {
		t.Fatalf("expected no attempt record, got %+v", record)
	}
	if len(f.events.failed) != 0 {
		t.Fatalf("expected no failure event for unknown alias")
	}
}

func TestLoginStatusGateRunsBeforeVerification(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "blocked", Credential: "pw", Status: domain.AccountStatusBlocked})
	f.seed(t, domain.Account{Alias: "retired", Credential: "pw", Status: domain.AccountStatusInactive})
	f.seed(t, domain.Account{Alias: "suspendido", Credential: "pw", Status: domain.AccountStatus("suspended")})

	_, err := f.service.Login(context.Background(), LoginInput{Alias: "blocked", Secret: "pw"})
	assertKind(t, err, domain.LoginErrorUserBlocked)

	_, err = f.service.Login(context.Background(), LoginInput{Alias: "retired", Secret: "wrong"})
	assertKind(t, err, domain.LoginErrorUserInactive)

	_, err = f.service.Login(context.Background(), LoginInput{Alias: "suspendido", Secret: "pw"})
	assertKind(t, err, domain.LoginErrorUserInactive)

	if f.attempts(t, "blocked") != nil || f.attempts(t, "retired") != nil || f.attempts(t, "suspendido") != nil {
		t.Fatalf("status rejections must not touch the ledger")
	}
	if got := f.account(t, "blocked").Credential; got != "pw" {
		t.Fatalf("blocked account credential changed to %q", got)
	}
}

func TestLoginLocksAfterThresholdAndStaysLocked(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "cajero", Credential: f.hash(t, "right"), BusinessID: 9, RoleID: 3})
	ctx := context.Background()

	for i := 1; i <= f.threshold; i++ {
		_, err := f.service.Login(ctx, LoginInput{Alias: "cajero", Secret: "wrong"})
		assertKind(t, err, domain.LoginErrorInvalidCredentials)

		record := f.attempts(t, "cajero")
		if record == nil || record.FailureCount != i {
			t.Fatalf("attempt %d: expected failure count %d, got %+v", i, i, record)
		}
		if record.BusinessID != 9 {
			t.Fatalf("expected business id to be recorded, got %d", record.BusinessID)
		}
	}

	if status := f.account(t, "cajero").Status; status != domain.AccountStatusBlocked {
		t.Fatalf("expected blocked status, got %s", status)
	}
	record := f.attempts(t, "cajero")
	if record.LockedAt == nil || !record.LockedAt.Equal(fixedNow) {
		t.Fatalf("expected locked_at stamp, got %+v", record.LockedAt)
	}

	_, err := f.service.Login(ctx, LoginInput{Alias: "cajero", Secret: "right"})
	assertKind(t, err, domain.LoginErrorUserBlocked)

	if len(f.events.failed) != f.threshold || len(f.events.locked) != 1 {
		t.Fatalf("unexpected events: failed=%d locked=%d", len(f.events.failed), len(f.events.locked))
	}
	if f.metrics.lockouts != 1 {
		t.Fatalf("expected one lockout metric, got %d", f.metrics.lockouts)
	}
	if f.metrics.outcomes[string(domain.LoginErrorInvalidCredentials)] != f.threshold ||
		f.metrics.outcomes[string(domain.LoginErrorUserBlocked)] != 1 {
		t.Fatalf("unexpected outcome metrics %+v", f.metrics.outcomes)
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "ana", Credential: f.hash(t, "right")})
	ctx := context.Background()

	for i := 0; i < f.threshold-1; i++ {
		if _, err := f.service.Login(ctx, LoginInput{Alias: "ana", Secret: "wrong"}); err == nil {
			t.Fatalf("expected failure")
		}
	}

	result, err := f.service.Login(ctx, LoginInput{Alias: "ana", Secret: "right"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Account.Alias != "ana" || result.Authorization.Alias != "ana" {
		t.Fatalf("unexpected result %+v", result)
	}

	record := f.attempts(t, "ana")
	if record.FailureCount != 0 || record.LockedAt != nil {
		t.Fatalf("expected reset record, got %+v", record)
	}
	if record.LastSuccessAt == nil || !record.LastSuccessAt.Equal(fixedNow) {
		t.Fatalf("expected last success stamp, got %+v", record.LastSuccessAt)
	}

	for i := 0; i < f.threshold-1; i++ {
		_, _ = f.service.Login(ctx, LoginInput{Alias: "ana", Secret: "wrong"})
	}
	if status := f.account(t, "ana").Status; status != domain.AccountStatusActive {
		t.Fatalf("non-consecutive failures must not block, got %s", status)
	}
}

func TestLoginMigratesLegacyCredentialOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "legacy", Credential: "1234", BusinessID: 4, RoleID: 1})
	ctx := context.Background()

	result, err := f.service.Login(ctx, LoginInput{Alias: "legacy", Secret: "1234"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.CredentialMigrated {
		t.Fatalf("expected migration flag on first login")
	}

	stored := f.account(t, "legacy").Credential
	if stored == "1234" || !strings.HasPrefix(stored, "$2") || len(stored) != 60 {
		t.Fatalf("expected bcrypt credential, got %q", stored)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte("1234")); err != nil {
		t.Fatalf("migrated hash does not match secret: %v", err)
	}

	result, err = f.service.Login(ctx, LoginInput{Alias: "legacy", Secret: "1234"})
	if err != nil {
		t.Fatalf("expected second success, got %v", err)
	}
	if result.CredentialMigrated {
		t.Fatalf("modern credential must not be migrated again")
	}
	if f.account(t, "legacy").Credential != stored {
		t.Fatalf("modern credential was rehashed")
	}

	if f.metrics.migrations != 1 || len(f.events.migrated) != 1 {
		t.Fatalf("expected exactly one migration, metrics=%d events=%d", f.metrics.migrations, len(f.events.migrated))
	}
	if f.events.migrated[0].Encoding != domain.CredentialEncodingLegacy {
		t.Fatalf("expected legacy source encoding, got %s", f.events.migrated[0].Encoding)
	}
	if len(f.events.succeeded) != 2 || !f.events.succeeded[0].CredentialMigrated {
		t.Fatalf("unexpected success events %+v", f.events.succeeded)
	}
}

func TestLoginWrongLegacySecretDoesNotMigrate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "legacy", Credential: "1234"})

	_, err := f.service.Login(context.Background(), LoginInput{Alias: "legacy", Secret: "123"})
	assertKind(t, err, domain.LoginErrorInvalidCredentials)

	if got := f.account(t, "legacy").Credential; got != "1234" {
		t.Fatalf("credential changed on failure: %q", got)
	}
}

func TestLoginMalformedModernCredentialFailsClosed(t *testing.T) {
	f := newFixture(t)
	malformed := "$2a$10$short"
	f.seed(t, domain.Account{Alias: "broken", Credential: malformed})

	_, err := f.service.Login(context.Background(), LoginInput{Alias: "broken", Secret: malformed})
	assertKind(t, err, domain.LoginErrorInvalidCredentials)

	if record := f.attempts(t, "broken"); record == nil || record.FailureCount != 1 {
		t.Fatalf("expected failure to be counted, got %+v", record)
	}
}

func TestLoginMigrationFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "legacy", Credential: "1234"})
	f.service.verifier = stubVerifier{
		result:     port.VerifyResult{Matched: true, NeedsMigration: true, Encoding: domain.CredentialEncodingLegacy},
		migrateErr: errors.New("hash failed"),
	}

	result, err := f.service.Login(context.Background(), LoginInput{Alias: "legacy", Secret: "1234"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.CredentialMigrated {
		t.Fatalf("migration flag must be false when hashing fails")
	}
	if got := f.account(t, "legacy").Credential; got != "1234" {
		t.Fatalf("credential should be unchanged, got %q", got)
	}
}

func TestLoginStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	storeErr := errors.New("connection refused")
	f.service.accounts = failingAccounts{err: storeErr}

	_, err := f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "pw"})
	assertKind(t, err, domain.LoginErrorInternal)
	if !errors.Is(err, ErrInternal) || !errors.Is(err, storeErr) {
		t.Fatalf("expected internal error wrapping cause, got %v", err)
	}

	var loginErr *LoginError
	if !errors.As(err, &loginErr) || loginErr.Message() != ErrInternal.Error() {
		t.Fatalf("expected client-safe message, got %v", err)
	}
}

func TestLoginTransactionFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "ana", Credential: f.hash(t, "right")})
	f.service.withinTx = func(context.Context, string, func(port.AccountStore, port.AttemptLedger) error) error {
		return errors.New("deadlock detected")
	}

	_, err := f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "wrong"})
	assertKind(t, err, domain.LoginErrorInternal)

	_, err = f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "right"})
	assertKind(t, err, domain.LoginErrorInternal)
}

func TestLoginPublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "ana", Credential: f.hash(t, "right")})
	f.events.err = errors.New("broker down")

	if _, err := f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "right"}); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
	_, err := f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "wrong"})
	assertKind(t, err, domain.LoginErrorInvalidCredentials)
}

func TestLoginConcurrentFailuresAreAllCounted(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "ana", Credential: f.hash(t, "right")})
	f.service.policy = domain.NewLockoutPolicy(100)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "wrong"})
		}()
	}
	wg.Wait()

	if record := f.attempts(t, "ana"); record == nil || record.FailureCount != workers {
		t.Fatalf("expected %d failures, got %+v", workers, record)
	}
}

func TestLoginConcurrentFailuresLockExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Account{Alias: "ana", Credential: "legacy-pw"})

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = f.service.Login(context.Background(), LoginInput{Alias: "ana", Secret: "wrong"})
		}()
	}
	wg.Wait()

	if status := f.account(t, "ana").Status; status != domain.AccountStatusBlocked {
		t.Fatalf("expected blocked, got %s", status)
	}
	if f.metrics.lockouts != 1 {
		t.Fatalf("expected exactly one lock transition, got %d", f.metrics.lockouts)
	}
}

func TestLoginLogsMaskAlias(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.InfoLevel)
	f.service.WithLogger(zap.New(core))
	f.seed(t, domain.Account{Alias: "cajero01", Credential: f.hash(t, "right")})

	if _, err := f.service.Login(context.Background(), LoginInput{Alias: "cajero01", Secret: "right"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	entries := logs.FilterMessage("login succeeded").All()
	if len(entries) != 1 {
		t.Fatalf("expected one success log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["alias"] != "ca***" || fields["outcome"] != domain.LoginOutcomeSuccess {
		t.Fatalf("unexpected log fields %+v", fields)
	}
	for _, entry := range logs.All() {
		for key, value := range entry.ContextMap() {
			if s, ok := value.(string); ok && strings.Contains(s, "right") {
				t.Fatalf("secret leaked into log field %s", key)
			}
		}
	}
}

func TestErrorKindClassifiesForeignErrors(t *testing.T) {
	if ErrorKind(nil) != "" {
		t.Fatalf("nil error must have no kind")
	}
	if ErrorKind(errors.New("other")) != domain.LoginErrorInternal {
		t.Fatalf("foreign errors must classify as internal")
	}
	err := newLoginError(domain.LoginErrorUserBlocked, nil)
	if err.Message() != ErrUserBlocked.Error() || !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("unexpected blocked error %v", err)
	}
}
