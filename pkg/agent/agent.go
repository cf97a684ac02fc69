// Package agent defines the contract with the external tool-calling agent.
// The agent's reasoning loop is an opaque collaborator: we hand it a system
// prompt, the conversation so far and the tool connections it may use, and get
// back one response string per message. Everything else is its business.
package agent

import (
	"context"

	"github.com/maiahq/maia/pkg/session"
)

// ToolConnection wires one third-party integration into the agent. The
// orchestrator only includes connections whose access token is non-empty.
type ToolConnection struct {
	Name        string
	AccessToken string
}

// BuildParams seeds a runner for one turn
type BuildParams struct {
	SystemPrompt string
	History      []session.Message
	Tools        []ToolConnection
}

// Runner executes one message against the agent
type Runner interface {
	Run(ctx context.Context, message string) (string, error)
}

// Builder constructs runners. The orchestrator rebuilds the runner after a
// forced credential refresh, so construction must be cheap and side-effect
// free until Run is called.
type Builder interface {
	Build(ctx context.Context, params BuildParams) (Runner, error)
}
