package session

import "sync"

// Fallback is the volatile in-process history map used when the durable
// backend is down. Everything in it is lost on restart, by contract.
type Fallback struct {
	sessions map[string][]Message
	mu       sync.RWMutex
}

// NewFallback creates an empty fallback map
func NewFallback() *Fallback {
	return &Fallback{
		sessions: make(map[string][]Message),
	}
}

// Get returns the history for a session, if present
func (f *Fallback) Get(sessionID string) ([]Message, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	history, ok := f.sessions[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out, true
}

// Put replaces the history for a session
func (f *Fallback) Put(sessionID string, history []Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make([]Message, len(history))
	copy(stored, history)
	f.sessions[sessionID] = stored
}

// Delete removes a session
func (f *Fallback) Delete(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
}

// Len returns the number of sessions held in memory
func (f *Fallback) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}
