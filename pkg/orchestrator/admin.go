package orchestrator

import (
	"context"

	"github.com/maiahq/maia/pkg/session"
)

// Sessions lists all durable session IDs
func (o *Orchestrator) Sessions(ctx context.Context) ([]string, error) {
	return o.store.List(ctx)
}

// SessionInfo returns metadata for one session
func (o *Orchestrator) SessionInfo(ctx context.Context, sessionID string) (*session.Info, error) {
	return o.store.Info(ctx, sessionID)
}

// DeleteSession removes a session from both the durable store and the
// in-memory fallback
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	o.fallback.Delete(sessionID)
	return o.store.Delete(ctx, sessionID)
}
