package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBackend is the production durable backend. The connection is probed
// once at startup with a short timeout; if the probe fails the backend starts
// disconnected and a background loop keeps probing so durability recovers on
// its own when Redis returns.
type RedisBackend struct {
	client    *redis.Client
	connected atomic.Bool
	logger    zerolog.Logger
}

// RedisConfig holds Redis backend configuration
type RedisConfig struct {
	URL            string
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

const reconnectInterval = 30 * time.Second

// NewRedisBackend creates the backend and probes the connection. A failed
// probe is not an error: the backend comes up disconnected and reports
// ErrUnavailable until Redis is reachable again.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	opts.DialTimeout = cfg.ConnectTimeout
	opts.ReadTimeout = cfg.ConnectTimeout
	opts.WriteTimeout = cfg.ConnectTimeout

	b := &RedisBackend{
		client: redis.NewClient(opts),
		logger: cfg.Logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := b.client.Ping(pingCtx).Err(); err != nil {
		b.logger.Warn().Err(err).Str("url", cfg.URL).
			Msg("Durable store unreachable, sessions degrade to process memory")
	} else {
		b.connected.Store(true)
		b.logger.Info().Str("url", cfg.URL).Msg("Connected to durable session store")
	}

	return b, nil
}

// StartReconnectLoop probes a disconnected backend until ctx is cancelled
func (b *RedisBackend) StartReconnectLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reconnectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if b.connected.Load() {
					continue
				}
				if err := b.client.Ping(ctx).Err(); err == nil {
					b.connected.Store(true)
					b.logger.Info().Msg("Durable session store is back")
				}
			}
		}
	}()
}

// Available reports whether the backend believes Redis is reachable
func (b *RedisBackend) Available() bool {
	return b.connected.Load()
}

// markDown flips to disconnected after an operation-level failure so
// subsequent calls fail fast until the reconnect loop brings us back
func (b *RedisBackend) markDown(err error) {
	if b.connected.CompareAndSwap(true, false) {
		b.logger.Warn().Err(err).Msg("Durable session store lost")
	}
}

// Get reads a key
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if !b.connected.Load() {
		return nil, ErrUnavailable
	}
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		b.markDown(err)
		return nil, ErrUnavailable
	}
	return data, nil
}

// Put writes a key with a TTL
func (b *RedisBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !b.connected.Load() {
		return ErrUnavailable
	}
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		b.markDown(err)
		return ErrUnavailable
	}
	return nil
}

// Delete removes a key
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if !b.connected.Load() {
		return ErrUnavailable
	}
	if err := b.client.Del(ctx, key).Err(); err != nil {
		b.markDown(err)
		return ErrUnavailable
	}
	return nil
}

// List returns all keys under a prefix, iterated with SCAN so the server is
// never blocked on a full keyspace sweep
func (b *RedisBackend) List(ctx context.Context, prefix string) ([]string, error) {
	if !b.connected.Load() {
		return nil, ErrUnavailable
	}
	var keys []string
	iter := b.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		b.markDown(err)
		return nil, ErrUnavailable
	}
	return keys, nil
}

// Touch slides the TTL of an existing key
func (b *RedisBackend) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if !b.connected.Load() {
		return ErrUnavailable
	}
	ok, err := b.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		b.markDown(err)
		return ErrUnavailable
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// TTL returns the remaining lifetime of a key
func (b *RedisBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !b.connected.Load() {
		return 0, ErrUnavailable
	}
	d, err := b.client.TTL(ctx, key).Result()
	if err != nil {
		b.markDown(err)
		return 0, ErrUnavailable
	}
	if d < 0 {
		return 0, ErrNotFound
	}
	return d, nil
}

// Close releases the client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
