// Package session persists conversation histories in a durable backend with a
// sliding inactivity TTL. The backend is an injected abstraction; the Redis
// implementation is the production one and an in-memory implementation serves
// tests. When the backend is unreachable every operation returns
// ErrUnavailable fast so callers can degrade to process memory instead of
// blocking the request path.
package session
