package config

import (
	"fmt"
	"net/url"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a loaded config for startup-blocking problems
func (v *Validator) Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Sessions.TTLDays <= 0 {
		return fmt.Errorf("session ttl_days must be positive, got %d", cfg.Sessions.TTLDays)
	}
	if err := v.ValidateRedisURL(cfg.Sessions.RedisURL); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, p := range cfg.Providers {
		if err := v.ValidateProvider(p); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name: %s", p.Name)
		}
		seen[p.Name] = true
	}

	for _, a := range cfg.Auth.Accounts {
		if a.Username == "" {
			return fmt.Errorf("account with empty username")
		}
		if a.Password == "" && a.PasswordHash == "" {
			return fmt.Errorf("account %s has neither password nor password_hash", a.Username)
		}
	}

	return nil
}

// ValidateRedisURL validates the session backend URL
func (v *Validator) ValidateRedisURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("sessions redis_url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid redis_url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("redis_url must use redis:// or rediss:// scheme, got %q", u.Scheme)
	}
	return nil
}

// ValidateProvider validates an OAuth provider entry
func (v *Validator) ValidateProvider(p ProviderConfig) error {
	if p.Name == "" {
		return fmt.Errorf("provider with empty name")
	}
	if !p.Enabled {
		return nil
	}
	if p.TokenURL == "" {
		return fmt.Errorf("provider %s is enabled but has no token_url", p.Name)
	}
	if _, err := url.Parse(p.TokenURL); err != nil {
		return fmt.Errorf("provider %s has invalid token_url: %w", p.Name, err)
	}
	if p.TokenFile == "" {
		return fmt.Errorf("provider %s is enabled but has no token_file", p.Name)
	}
	return nil
}
