package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Maia configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Auth
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Sessions
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// OAuth tool providers
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Agent
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// AuthConfig holds API key and account configuration
type AuthConfig struct {
	// Keys valid from process start; login mints additional ones
	APIKeys  []string  `json:"api_keys" mapstructure:"api_keys"`
	Accounts []Account `json:"accounts" mapstructure:"accounts"`
}

// Account is a configured login credential. Either PasswordHash (bcrypt)
// or Password (hashed at startup) must be set.
type Account struct {
	Username     string `json:"username" mapstructure:"username"`
	Password     string `json:"password,omitempty" mapstructure:"password"`
	PasswordHash string `json:"password_hash,omitempty" mapstructure:"password_hash"`
}

// SessionsConfig holds durable session store configuration
type SessionsConfig struct {
	RedisURL       string `json:"redis_url" mapstructure:"redis_url"`
	TTLDays        int    `json:"ttl_days" mapstructure:"ttl_days"`
	ConnectTimeout int    `json:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
}

// ProviderConfig is a declarative OAuth provider entry. Disabled entries are
// skipped at startup without touching any wiring.
type ProviderConfig struct {
	Name         string `json:"name" mapstructure:"name"`
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	TokenFile    string `json:"token_file" mapstructure:"token_file"`
	TokenURL     string `json:"token_url" mapstructure:"token_url"`
	ClientID     string `json:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret,omitempty" mapstructure:"client_secret"`
}

// AgentConfig holds the external agent collaborator configuration
type AgentConfig struct {
	Model        string `json:"model" mapstructure:"model"`
	APIKey       string `json:"api_key" mapstructure:"api_key"`
	BaseURL      string `json:"base_url" mapstructure:"base_url"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Sessions: SessionsConfig{
			RedisURL:       "redis://localhost:6379",
			TTLDays:        7,
			ConnectTimeout: 5,
		},
		Agent: AgentConfig{
			Model:   "google/gemini-2.5-flash-lite",
			BaseURL: "https://openrouter.ai/api/v1",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Auth = AuthConfig{APIKeys: maskAll(c.Auth.APIKeys), Accounts: maskAccounts(c.Auth.Accounts)}
	masked.Agent.APIKey = mask(c.Agent.APIKey)
	masked.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		p.ClientSecret = mask(p.ClientSecret)
		masked.Providers[i] = p
	}

	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func maskAll(ss []string) []string {
	out := make([]string, len(ss))
	for i := range ss {
		out[i] = mask(ss[i])
	}
	return out
}

func maskAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	for i, a := range accounts {
		a.Password = mask(a.Password)
		a.PasswordHash = mask(a.PasswordHash)
		out[i] = a
	}
	return out
}
