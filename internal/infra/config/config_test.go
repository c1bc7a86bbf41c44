package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Lockout.Threshold != 3 {
		t.Fatalf("expected default lockout threshold 3, got %d", cfg.Lockout.Threshold)
	}
	if cfg.Credentials.Scheme != "bcrypt" || cfg.Credentials.BcryptCost != 12 {
		t.Fatalf("unexpected credential defaults %+v", cfg.Credentials)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Fatalf("expected postgres driver by default, got %q", cfg.Storage.Driver)
	}
	if cfg.RateLimit.WindowDuration != time.Minute {
		t.Fatalf("expected 1m window, got %s", cfg.RateLimit.WindowDuration)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("POS_LOCKOUT_THRESHOLD", "5")
	t.Setenv("POS_STORAGE_DRIVER", "memory")
	t.Setenv("POS_CREDENTIALS_SCHEME", "argon2id")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lockout.Threshold != 5 || cfg.Storage.Driver != StorageDriverMemory || cfg.Credentials.Scheme != "argon2id" {
		t.Fatalf("env overrides not applied: %+v %+v %+v", cfg.Lockout, cfg.Storage, cfg.Credentials)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("POS_STORAGE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestValidateLockoutThreshold(t *testing.T) {
	cfg := AppConfig{Storage: StorageSettings{Driver: StorageDriverMemory}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
}

func TestLoadSeedAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := []byte(`accounts:
  - alias: cajero01
    credential: "1234"
    status: active
    business_id: 1
    role_id: 2
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	accounts, err := LoadSeedAccounts(path)
	if err != nil {
		t.Fatalf("LoadSeedAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Alias != "cajero01" || accounts[0].Credential != "1234" || accounts[0].RoleID != 2 {
		t.Fatalf("unexpected accounts %+v", accounts)
	}

	if accounts, err := LoadSeedAccounts(""); err != nil || accounts != nil {
		t.Fatalf("empty path should be a no-op, got %v %v", accounts, err)
	}
}
