package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotConfigured means the key set is empty. This is a server
	// misconfiguration, reported distinctly from a bad key so operators can
	// tell a broken deploy from an intrusion attempt.
	ErrNotConfigured = errors.New("no API keys configured")

	// ErrInvalidKey means the presented key is not in the valid set
	ErrInvalidKey = errors.New("invalid API key")

	// ErrLoginRejected means the username/password pair did not match
	ErrLoginRejected = errors.New("invalid username or password")

	// ErrNoAccounts means login is impossible because no accounts exist
	ErrNoAccounts = errors.New("no accounts configured")
)

// keyBytes gives 256 bits of entropy per generated key
const keyBytes = 32

// Account is a configured login credential
type Account struct {
	Username     string
	PasswordHash []byte // bcrypt
}

// Authority owns the set of valid application API keys and the accounts that
// may mint new ones. All keys are equivalent: membership is the sole check.
type Authority struct {
	keys     map[string]struct{}
	accounts map[string][]byte // username -> bcrypt hash
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// Config holds authority configuration
type Config struct {
	// Keys valid from process start
	Keys []string
	// Accounts allowed to mint keys via login
	Accounts []Account
	Logger   zerolog.Logger
}

// New creates an authority seeded with the configured keys and accounts
func New(cfg Config) *Authority {
	a := &Authority{
		keys:     make(map[string]struct{}),
		accounts: make(map[string][]byte),
		logger:   cfg.Logger,
	}

	for _, k := range cfg.Keys {
		if k != "" {
			a.keys[k] = struct{}{}
		}
	}
	for _, acct := range cfg.Accounts {
		if acct.Username != "" {
			a.accounts[acct.Username] = acct.PasswordHash
		}
	}

	a.logger.Info().Int("keys", len(a.keys)).Int("accounts", len(a.accounts)).
		Msg("API key authority initialized")
	return a
}

// HashPassword bcrypt-hashes a plaintext password for account construction
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Validate checks key membership. It fails closed: an empty key set rejects
// everything with ErrNotConfigured, a non-member key with ErrInvalidKey.
func (a *Authority) Validate(key string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.keys) == 0 {
		return ErrNotConfigured
	}
	if _, ok := a.keys[key]; !ok {
		return ErrInvalidKey
	}
	return nil
}

// Login verifies the credentials and, on success, mints a new API key and adds
// it to the valid set. bcrypt comparison keeps the check constant-form.
func (a *Authority) Login(username, password string) (string, error) {
	a.mu.RLock()
	noAccounts := len(a.accounts) == 0
	hash, exists := a.accounts[username]
	a.mu.RUnlock()

	if noAccounts {
		return "", ErrNoAccounts
	}
	if !exists {
		// Burn a comparison anyway so unknown usernames cost the same
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrLoginRejected
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		a.logger.Warn().Str("username", username).Msg("Login rejected")
		return "", ErrLoginRejected
	}

	key, err := Generate()
	if err != nil {
		return "", err
	}
	a.Add(key)
	a.logger.Info().Str("username", username).Msg("Login succeeded, key minted")
	return key, nil
}

// Generate returns a new cryptographically random URL-safe key
func Generate() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Add inserts a key into the valid set
func (a *Authority) Add(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[key] = struct{}{}
}

// Count returns the number of valid keys
func (a *Authority) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// AccountCount returns the number of configured accounts
func (a *Authority) AccountCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.accounts)
}

// dummyHash is compared against for unknown usernames
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("maia-dummy-password"), bcrypt.DefaultCost)
	return h
}()
