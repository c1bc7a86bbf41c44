package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SeedAccount describes an account preloaded into the memory storage driver.
type SeedAccount struct {
	Alias      string `mapstructure:"alias"`
	Credential string `mapstructure:"credential"`
	Status     string `mapstructure:"status"`
	BusinessID int64  `mapstructure:"business_id"`
	RoleID     int64  `mapstructure:"role_id"`
}

// LoadSeedAccounts reads the accounts list from a YAML, JSON or TOML file.
func LoadSeedAccounts(path string) ([]SeedAccount, error) {
	if path == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var accounts []SeedAccount
	if err := v.UnmarshalKey("accounts", &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal seed accounts: %w", err)
	}

	for i, account := range accounts {
		if account.Alias == "" {
			return nil, fmt.Errorf("seed account %d: alias is required", i)
		}
	}

	return accounts, nil
}
