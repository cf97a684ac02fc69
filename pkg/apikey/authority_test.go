package apikey

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthority(t *testing.T, keys []string, accounts map[string]string) *Authority {
	t.Helper()
	var accts []Account
	for user, pass := range accounts {
		hash, err := HashPassword(pass)
		require.NoError(t, err)
		accts = append(accts, Account{Username: user, PasswordHash: hash})
	}
	return New(Config{Keys: keys, Accounts: accts, Logger: zerolog.Nop()})
}

func TestAuthority_Validate(t *testing.T) {
	a := newTestAuthority(t, []string{"key-one", "key-two"}, nil)

	assert.NoError(t, a.Validate("key-one"))
	assert.NoError(t, a.Validate("key-two"))
	assert.ErrorIs(t, a.Validate("key-three"), ErrInvalidKey)
	assert.ErrorIs(t, a.Validate(""), ErrInvalidKey)
}

func TestAuthority_ValidateNotConfigured(t *testing.T) {
	a := newTestAuthority(t, nil, nil)

	// Empty set fails closed with a distinct condition, regardless of input
	assert.ErrorIs(t, a.Validate("anything"), ErrNotConfigured)
	assert.ErrorIs(t, a.Validate(""), ErrNotConfigured)
}

func TestAuthority_Login(t *testing.T) {
	a := newTestAuthority(t, []string{"seed-key"}, map[string]string{"alice": "correct horse"})

	t.Run("valid credentials mint a key that validates", func(t *testing.T) {
		key, err := a.Login("alice", "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, key)
		assert.NoError(t, a.Validate(key))
		assert.Equal(t, 2, a.Count())
	})

	t.Run("wrong password adds no key", func(t *testing.T) {
		before := a.Count()
		_, err := a.Login("alice", "wrong")
		assert.ErrorIs(t, err, ErrLoginRejected)
		assert.Equal(t, before, a.Count())
	})

	t.Run("unknown username adds no key", func(t *testing.T) {
		before := a.Count()
		_, err := a.Login("mallory", "correct horse")
		assert.ErrorIs(t, err, ErrLoginRejected)
		assert.Equal(t, before, a.Count())
	})
}

func TestAuthority_LoginNoAccounts(t *testing.T) {
	a := newTestAuthority(t, []string{"k"}, nil)

	_, err := a.Login("anyone", "anything")
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestGenerate_KeyShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		key, err := Generate()
		require.NoError(t, err)
		// 32 random bytes in unpadded base64url
		assert.Len(t, key, 43)
		assert.False(t, seen[key], "generated a duplicate key")
		seen[key] = true
	}
}

func TestAuthority_ConcurrentAdd(t *testing.T) {
	a := newTestAuthority(t, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := Generate()
			assert.NoError(t, err)
			a.Add(key)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, a.Count())
}
