// Package orchestrator composes the credential stores, the API key authority
// and the session store around each external agent invocation. One call to
// Turn is one conversation turn: authenticate, load history, invoke, persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maiahq/maia/internal/metrics"
	"github.com/maiahq/maia/pkg/agent"
	"github.com/maiahq/maia/pkg/apikey"
	"github.com/maiahq/maia/pkg/credential"
	"github.com/maiahq/maia/pkg/session"
)

// DefaultSessionID is used when the caller omits a session id. Fine for the
// intended single-user deployment; callers wanting isolation pass their own.
const DefaultSessionID = "default"

// Orchestrator drives the per-turn state machine
type Orchestrator struct {
	authority    *apikey.Authority
	store        *session.Store
	fallback     *session.Fallback
	credentials  []*credential.Store
	builder      agent.Builder
	systemPrompt string
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// Config holds orchestrator dependencies. Everything is injected at startup;
// there are no lazily-initialized globals behind this type.
type Config struct {
	Authority    *apikey.Authority
	Store        *session.Store
	Fallback     *session.Fallback
	Credentials  []*credential.Store
	Builder      agent.Builder
	SystemPrompt string
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// New creates an orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Authority == nil {
		return nil, fmt.Errorf("authority is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("agent builder is required")
	}
	if cfg.Fallback == nil {
		cfg.Fallback = session.NewFallback()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}

	return &Orchestrator{
		authority:    cfg.Authority,
		store:        cfg.Store,
		fallback:     cfg.Fallback,
		credentials:  cfg.Credentials,
		builder:      cfg.Builder,
		systemPrompt: cfg.SystemPrompt,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}, nil
}

// Turn runs one conversation turn. The API key is checked first; then history
// is resolved, the agent invoked (with at most one auth-flavored retry after a
// forced credential refresh), and the completed user+assistant pair persisted.
// History never records a half-finished turn.
func (o *Orchestrator) Turn(ctx context.Context, apiKey, sessionID, message string) (string, error) {
	start := time.Now()
	defer func() {
		o.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}()

	if err := o.authority.Validate(apiKey); err != nil {
		o.metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	logger := o.logger.With().
		Str("turn_id", uuid.NewString()).
		Str("session_id", sessionID).
		Logger()

	history := o.loadHistory(ctx, sessionID, logger)

	response, err := o.invoke(ctx, history, message, logger)
	if err != nil {
		o.metrics.TurnsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	// The turn completed: append exactly one user+assistant pair
	history = append(history,
		session.Message{Role: "user", Content: message},
		session.Message{Role: "assistant", Content: response},
	)
	o.persist(ctx, sessionID, history, logger)

	o.metrics.TurnsTotal.WithLabelValues("ok").Inc()
	o.updateHealthGauge()

	return response, nil
}

// loadHistory resolves the conversation so far: durable store first, then the
// volatile fallback, then an empty history. Load failures are degradation, not
// request failures.
func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string, logger zerolog.Logger) []session.Message {
	history, err := o.store.Load(ctx, sessionID)
	if err == nil {
		return history
	}

	if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrUnavailable) {
		logger.Warn().Err(err).Msg("Unreadable session record, starting fresh")
		return nil
	}

	if fromMemory, ok := o.fallback.Get(sessionID); ok {
		o.metrics.FallbackLoads.Inc()
		logger.Debug().Msg("History served from process memory")
		return fromMemory
	}

	return nil
}

// invoke hands the turn to the agent. An authentication-flavored failure on
// the first attempt forces every credential store through a refresh, rebuilds
// the tool wiring from scratch and retries the invocation exactly once. Any
// other failure, or a failure on the retry, propagates unmodified.
func (o *Orchestrator) invoke(ctx context.Context, history []session.Message, message string, logger zerolog.Logger) (string, error) {
	runner, err := o.buildRunner(ctx, history)
	if err != nil {
		return "", fmt.Errorf("failed to build agent: %w", err)
	}

	response, err := runner.Run(ctx, message)
	if err == nil {
		return response, nil
	}
	if !agent.IsAuthError(err) {
		return "", err
	}

	logger.Warn().Err(err).Msg("Auth-flavored agent failure, refreshing credentials and retrying once")
	o.metrics.AgentRetries.Inc()
	o.refreshAll(ctx)

	runner, buildErr := o.buildRunner(ctx, history)
	if buildErr != nil {
		return "", fmt.Errorf("failed to rebuild agent: %w", buildErr)
	}
	return runner.Run(ctx, message)
}

// buildRunner assembles the tool connections from the current access tokens.
// Providers without a token are omitted, never treated as fatal.
func (o *Orchestrator) buildRunner(ctx context.Context, history []session.Message) (agent.Runner, error) {
	var tools []agent.ToolConnection
	for _, cred := range o.credentials {
		token := cred.AccessToken()
		if token == "" {
			continue
		}
		tools = append(tools, agent.ToolConnection{Name: cred.Name(), AccessToken: token})
	}

	return o.builder.Build(ctx, agent.BuildParams{
		SystemPrompt: o.systemPrompt,
		History:      history,
		Tools:        tools,
	})
}

// refreshAll forces a refresh on every configured credential store. The agent
// error does not identify which integration failed, so the whole set goes
// through the exchange.
func (o *Orchestrator) refreshAll(ctx context.Context) {
	for _, cred := range o.credentials {
		status := "success"
		if !cred.Refresh(ctx) {
			status = "failure"
		}
		o.metrics.TokenRefreshesTotal.WithLabelValues(cred.Name(), status).Inc()
	}
}

// persist saves the completed turn. A durable-store failure downgrades to the
// in-memory fallback and surfaces only as an observability signal. A durable
// success supersedes any stale fallback copy.
func (o *Orchestrator) persist(ctx context.Context, sessionID string, history []session.Message, logger zerolog.Logger) {
	if err := o.store.Save(ctx, sessionID, history); err != nil {
		o.fallback.Put(sessionID, history)
		o.metrics.DegradedSaves.Inc()
		logger.Warn().Err(err).Msg("Durable save failed, history held in process memory only")
		return
	}
	o.fallback.Delete(sessionID)
}

func (o *Orchestrator) updateHealthGauge() {
	if o.store.Available() {
		o.metrics.DurableStoreUp.Set(1)
	} else {
		o.metrics.DurableStoreUp.Set(0)
	}
}

// Health reports the degradation state of the request path
type Health struct {
	DurableStore     bool `json:"durable_store"`
	FallbackSessions int  `json:"fallback_sessions"`
}

// Health returns the current degradation state
func (o *Orchestrator) Health() Health {
	return Health{
		DurableStore:     o.store.Available(),
		FallbackSessions: o.fallback.Len(),
	}
}
