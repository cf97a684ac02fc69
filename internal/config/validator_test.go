package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.APIKeys = []string{"k1"}
	cfg.Auth.Accounts = []Account{{Username: "alice", Password: "secret"}}
	cfg.Providers = []ProviderConfig{
		{Name: "notion", Enabled: true, TokenURL: "https://mcp.notion.com/token", TokenFile: "/tmp/notion.json"},
		{Name: "ticktick", Enabled: false},
	}
	return cfg
}

func TestValidatorValidate(t *testing.T) {
	v := NewValidator()

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, v.Validate(validTestConfig()))
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Server.Port = 0
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("zero ttl", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Sessions.TTLDays = 0
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("bad redis scheme", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Sessions.RedisURL = "http://localhost:6379"
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("enabled provider without token_url", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Providers[0].TokenURL = ""
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("disabled provider needs no token_url", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Providers[1].TokenURL = ""
		cfg.Providers[1].TokenFile = ""
		assert.NoError(t, v.Validate(cfg))
	})

	t.Run("duplicate provider names", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Providers[1].Name = "notion"
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("account without any password", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Auth.Accounts[0].Password = ""
		cfg.Auth.Accounts[0].PasswordHash = ""
		assert.Error(t, v.Validate(cfg))
	})
}
