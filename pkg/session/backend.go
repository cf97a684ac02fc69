package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the backend is reachable but the key does not exist
	ErrNotFound = errors.New("session not found")

	// ErrUnavailable means the durable backend cannot be reached. It is a
	// degradation signal, never a request failure.
	ErrUnavailable = errors.New("durable store unavailable")
)

// Backend is the durable key/value layer beneath the store. Implementations
// must return ErrNotFound for missing keys and ErrUnavailable, without
// blocking, when the backing service is unreachable.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Touch(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Available() bool
}
