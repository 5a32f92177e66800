package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestClaudeChat(t *testing.T) {
	apiKey := os.Getenv("TEST_ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_ANTHROPIC_API_KEY is not set")
	}

	client := adapter.NewClaude(apiKey, adapter.WithMaxTokens(64))
	msg, err := client.Chat(context.Background(), "Answer with a single word.", []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock("What is the capital of France?")),
	})
	gt.NoError(t, err)
	gt.A(t, msg.Content).Longer(0)
}
