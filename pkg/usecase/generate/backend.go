package generate

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Backend sends one instruction and prompt to a text generation service and
// returns the raw reply
type Backend interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type geminiBackend struct {
	gemini adapter.Gemini
}

// NewGeminiBackend generates with Gemini in JSON mode, constrained by the
// review item schema
func NewGeminiBackend(gemini adapter.Gemini) Backend {
	return &geminiBackend{gemini: gemini}
}

func (b *geminiBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	schema, err := convertJSONSchemaToGenai(itemListSchema)
	if err != nil {
		return "", goerr.Wrap(err, "failed to build response schema")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		MaxOutputTokens:   1000,
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := b.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate review items")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("empty response from gemini")
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	if len(texts) == 0 {
		return "", goerr.New("no text in gemini response")
	}
	return strings.Join(texts, ""), nil
}

type claudeBackend struct {
	claude adapter.Claude
}

// NewClaudeBackend generates with Claude
func NewClaudeBackend(claude adapter.Claude) Backend {
	return &claudeBackend{claude: claude}
}

func (b *claudeBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	msg, err := b.claude.Chat(ctx, system, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate review items")
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", goerr.New("no text content in claude response")
}
