package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBuilder builds runners backed by an OpenAI-compatible chat endpoint
// (OpenRouter in the default deployment). The tool-calling loop lives in the
// external agent framework; this builder only carries the wiring it needs.
type OpenAIBuilder struct {
	client openai.Client
	model  string
}

// OpenAIConfig holds builder configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIBuilder creates a builder for the configured model
func NewOpenAIBuilder(cfg OpenAIConfig) (*OpenAIBuilder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("agent model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBuilder{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Build seeds a runner with the system prompt, history and tool wiring
func (b *OpenAIBuilder) Build(ctx context.Context, params BuildParams) (Runner, error) {
	return &openAIRunner{
		client:   b.client,
		model:    b.model,
		messages: seedMessages(params),
	}, nil
}

type openAIRunner struct {
	client   openai.Client
	model    string
	messages []openai.ChatCompletionMessageParamUnion
}

// Run sends the message on top of the seeded conversation
func (r *openAIRunner) Run(ctx context.Context, message string) (string, error) {
	messages := append(r.messages, openai.UserMessage(message))

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("agent run failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("agent returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// seedMessages converts the build params into the provider wire format
func seedMessages(params BuildParams) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	prompt := params.SystemPrompt
	if len(params.Tools) > 0 {
		var names []string
		for _, tool := range params.Tools {
			names = append(names, tool.Name)
		}
		prompt = strings.TrimSpace(prompt + "\n\nConnected integrations: " + strings.Join(names, ", ") + ".")
	}
	if prompt != "" {
		messages = append(messages, openai.SystemMessage(prompt))
	}

	for _, msg := range params.History {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	return messages
}
