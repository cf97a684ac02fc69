package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message represents a single conversation entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Info is session metadata without the full history
type Info struct {
	SessionID        string    `json:"session_id"`
	MessageCount     int       `json:"message_count"`
	UpdatedAt        time.Time `json:"updated_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds,omitempty"`
}

// envelope is the stored representation of a session
type envelope struct {
	SessionID string    `json:"session_id"`
	History   []Message `json:"history"`
	UpdatedAt time.Time `json:"updated_at"`
}

const keyPrefix = "maia:session:"

// Store persists conversation histories through a Backend with a sliding TTL.
// Reads refresh the TTL so active sessions never expire; idle ones do.
type Store struct {
	backend Backend
	ttl     time.Duration
	logger  zerolog.Logger
}

// Config holds store configuration
type Config struct {
	Backend Backend
	TTL     time.Duration
	Logger  zerolog.Logger
}

// NewStore creates a session store over the given backend
func NewStore(cfg Config) (*Store, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Store{
		backend: cfg.Backend,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
	}, nil
}

// Available reports whether the durable backend is reachable. This is the
// health signal that makes silent durability degradation observable.
func (s *Store) Available() bool {
	return s.backend.Available()
}

// TTL returns the configured inactivity window
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Save writes the full history snapshot with a fresh TTL. ErrUnavailable
// means the caller must fall back to process memory; the store never hides
// the failure.
func (s *Store) Save(ctx context.Context, sessionID string, history []Message) error {
	env := envelope{
		SessionID: sessionID,
		History:   history,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.backend.Put(ctx, sessionKey(sessionID), data, s.ttl); err != nil {
		return err
	}
	s.logger.Debug().Str("session_id", sessionID).Int("messages", len(history)).Msg("Session saved")
	return nil
}

// Load reads a session history and slides its TTL. ErrNotFound is the normal
// "no such session" answer; ErrUnavailable means the backend is down.
func (s *Store) Load(ctx context.Context, sessionID string) ([]Message, error) {
	key := sessionKey(sessionID)
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", sessionID, err)
	}

	// Session is active, keep it alive
	if err := s.backend.Touch(ctx, key, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to slide session TTL")
	}

	return env.History, nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.backend.Delete(ctx, sessionKey(sessionID)); err != nil {
		return err
	}
	s.logger.Info().Str("session_id", sessionID).Msg("Session deleted")
	return nil
}

// List returns the IDs of all stored sessions
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.backend.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, keyPrefix))
	}
	return ids, nil
}

// Info returns session metadata without sliding the TTL
func (s *Store) Info(ctx context.Context, sessionID string) (*Info, error) {
	key := sessionKey(sessionID)
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", sessionID, err)
	}

	info := &Info{
		SessionID:    sessionID,
		MessageCount: len(env.History),
		UpdatedAt:    env.UpdatedAt,
	}
	if ttl, err := s.backend.TTL(ctx, key); err == nil && ttl > 0 {
		info.ExpiresInSeconds = int64(ttl.Seconds())
	}
	return info, nil
}
