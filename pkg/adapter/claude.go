package adapter

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

// Claude is the interface for Claude API client
type Claude interface {
	// Chat sends messages with a system instruction and returns the response
	Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error)
}

// claudeClient implements Claude interface
type claudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// ClaudeOption is a functional option for the Claude client
type ClaudeOption func(*claudeClient)

// WithClaudeModel sets the model identifier
func WithClaudeModel(model string) ClaudeOption {
	return func(c *claudeClient) {
		c.model = model
	}
}

// WithMaxTokens caps the response length
func WithMaxTokens(n int64) ClaudeOption {
	return func(c *claudeClient) {
		c.maxTokens = n
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) Claude {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &claudeClient{
		client:    &client,
		model:     "claude-sonnet-4-5-20250929",
		maxTokens: 1000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *claudeClient) Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call claude", goerr.V("model", c.model))
	}
	return msg, nil
}
