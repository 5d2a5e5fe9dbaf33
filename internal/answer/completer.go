package answer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dperrin/vidrag/internal/core"
)

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, OpenRouter and friends share the wire format). One client
// is constructed at startup and reused; the call itself is stateless.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// CompleterConfig configures the completion client.
type CompleterConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewOpenAICompleter creates a completion client.
func NewOpenAICompleter(cfg CompleterConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing completion API key", core.ErrGeneration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing completion model name", core.ErrGeneration)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Model returns the configured model identifier.
func (c *OpenAICompleter) Model() string { return c.model }

// Complete sends the prompt as a single user message and returns the
// generated text.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", core.ErrGeneration)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
