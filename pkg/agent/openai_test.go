package agent

import (
	"context"
	"testing"

	"github.com/maiahq/maia/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIBuilder_Validation(t *testing.T) {
	_, err := NewOpenAIBuilder(OpenAIConfig{Model: "m"})
	assert.Error(t, err)

	_, err = NewOpenAIBuilder(OpenAIConfig{APIKey: "sk-test"})
	assert.Error(t, err)

	b, err := NewOpenAIBuilder(OpenAIConfig{APIKey: "sk-test", Model: "m", BaseURL: "https://openrouter.ai/api/v1"})
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestOpenAIBuilder_BuildSeedsConversation(t *testing.T) {
	b, err := NewOpenAIBuilder(OpenAIConfig{APIKey: "sk-test", Model: "m"})
	require.NoError(t, err)

	runner, err := b.Build(context.Background(), BuildParams{
		SystemPrompt: "You are a helpful assistant.",
		History: []session.Message{
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi"},
		},
		Tools: []ToolConnection{{Name: "notion", AccessToken: "at"}},
	})
	require.NoError(t, err)

	r, ok := runner.(*openAIRunner)
	require.True(t, ok)
	// system + two history entries
	assert.Len(t, r.messages, 3)
}

func TestSeedMessages(t *testing.T) {
	t.Run("empty params yield no messages", func(t *testing.T) {
		assert.Empty(t, seedMessages(BuildParams{}))
	})

	t.Run("history without system prompt", func(t *testing.T) {
		msgs := seedMessages(BuildParams{
			History: []session.Message{
				{Role: "user", Content: "a"},
				{Role: "assistant", Content: "b"},
			},
		})
		assert.Len(t, msgs, 2)
	})

	t.Run("unknown roles are dropped", func(t *testing.T) {
		msgs := seedMessages(BuildParams{
			History: []session.Message{
				{Role: "tool", Content: "x"},
				{Role: "user", Content: "a"},
			},
		})
		assert.Len(t, msgs, 1)
	})
}
