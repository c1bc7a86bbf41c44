package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/config"
)

const seedYAML = `accounts:
  - alias: cajero01
    credential: "1234"
    business_id: 3
    role_id: 2
  - alias: gerente
    credential: "9999"
    status: inactive
    business_id: 3
    role_id: 1
`

func memoryConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	seed := filepath.Join(t.TempDir(), "accounts.yaml")
	if err := os.WriteFile(seed, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	return &config.AppConfig{
		App:         config.AppSettings{Name: "pos-auth", Env: "test"},
		Storage:     config.StorageSettings{Driver: config.StorageDriverMemory, SeedFile: seed},
		Telemetry:   config.TelemetrySettings{ServiceName: "pos-auth", SamplingRate: 1},
		RateLimit:   config.RateLimitSettings{Enabled: true, WindowDuration: time.Minute, LoginMaxAttempts: 2},
		Lockout:     config.LockoutSettings{Threshold: 3},
		Credentials: config.CredentialSettings{Scheme: "bcrypt", BcryptCost: 4},
	}
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestApplicationServesSeededAccounts(t *testing.T) {
	a, err := newApplication(context.Background(), memoryConfig(t), zaptest.NewLogger(t), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	t.Cleanup(func() { a.release(context.Background()) })

	if rr := post(a.Handler(), `{"alias":"cajero01","secret":"1234"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr := post(a.Handler(), `{"alias":"gerente","secret":"9999"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("expected inactive account to get 403, got %d", rr.Code)
	}

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `pos_auth_login_attempts_total{outcome="SUCCESS"} 1`) {
		t.Fatalf("expected login metrics to be exposed, got:\n%s", rr.Body.String())
	}
}

func TestApplicationRateLimitsThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	cfg := memoryConfig(t)
	cfg.Redis = config.RedisSettings{Enabled: true, Host: mr.Host(), Port: port, RateLimitPrefix: "pos:ratelimit"}

	a, err := newApplication(context.Background(), cfg, zaptest.NewLogger(t), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	t.Cleanup(func() { a.release(context.Background()) })

	for i := 0; i < 2; i++ {
		if rr := post(a.Handler(), `{"alias":"nadie","secret":"x"}`); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rr.Code)
		}
	}
	if rr := post(a.Handler(), `{"alias":"nadie","secret":"x"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready with redis up, got %d", rr.Code)
	}
}

func TestApplicationRejectsUnknownScheme(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Credentials.Scheme = "md5"

	if _, err := newApplication(context.Background(), cfg, zaptest.NewLogger(t), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected unsupported scheme to fail wiring")
	}
}
