package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestGenerateContent(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	contents := []*genai.Content{
		genai.NewContentFromText("Reply with a JSON array containing the number 1.", genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	gt.NoError(t, err)

	if resp == nil ||
		len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].Text == "" {
		t.Fatal("unexpected response")
	}

	t.Log("response:", resp.Candidates[0].Content.Parts[0].Text)
}
