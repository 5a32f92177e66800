package generate_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/usecase/generate"
	"github.com/m-mizutani/gt"
)

type mockBackend struct {
	generateFunc func(ctx context.Context, system, prompt string) (string, error)
	calls        int
	lastPrompt   string
}

func (m *mockBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	return m.generateFunc(ctx, system, prompt)
}

func reply(s string) *mockBackend {
	return &mockBackend{
		generateFunc: func(ctx context.Context, system, prompt string) (string, error) {
			return s, nil
		},
	}
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateWithoutBackend(t *testing.T) {
	uc := generate.New(nil, generate.WithClock(func() time.Time { return fixedNow }))
	source := strings.Repeat("photosynthesis ", 40)

	result := uc.Generate(context.Background(), "bio-1", source)
	gt.True(t, result.Degraded)
	gt.A(t, result.Variants).Length(1)

	v := result.First()
	gt.Equal(t, v.ItemID, model.StudyItemID("bio-1"))
	gt.Equal(t, v.Origin, model.OriginAIGenerated)
	gt.Equal(t, v.Type, model.ItemTypeFlashcard)
	gt.Equal(t, v.Difficulty, model.DifficultyMedium)
	gt.Equal(t, v.CreatedAt, fixedNow)

	text, ok := v.Content["text"].(string)
	gt.True(t, ok)
	gt.True(t, strings.HasPrefix(source, text)).Describe("stub text must be a prefix of the source")
	gt.Equal(t, len([]rune(text)), 200)
}

func TestGenerateBackendError(t *testing.T) {
	backend := &mockBackend{
		generateFunc: func(ctx context.Context, system, prompt string) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	uc := generate.New(backend)

	result := uc.Generate(context.Background(), "item-1", "short source")
	gt.Equal(t, backend.calls, 1)
	gt.True(t, result.Degraded)
	gt.A(t, result.Variants).Length(1)
	gt.Equal(t, result.First().Content["text"], any("short source"))
}

func TestGenerateParsesArray(t *testing.T) {
	backend := reply(`[
		{"type": "flashcard", "difficulty": "easy", "content": {"front": "H2O", "back": "water"}},
		{"type": "quiz", "difficulty": "hard", "content": {"question": "2+2?", "choices": ["3", "4"], "answerIndex": 1}}
	]`)
	uc := generate.New(backend)

	result := uc.Generate(context.Background(), "chem-1", "water chemistry")
	gt.False(t, result.Degraded)
	gt.A(t, result.Variants).Length(2)

	gt.Equal(t, result.Variants[0].Type, model.ItemTypeFlashcard)
	gt.Equal(t, result.Variants[0].Difficulty, model.DifficultyEasy)
	gt.Equal(t, result.Variants[0].Content["front"], any("H2O"))

	gt.Equal(t, result.Variants[1].Type, model.ItemTypeQuiz)
	gt.Equal(t, result.Variants[1].Difficulty, model.DifficultyHard)
	for _, v := range result.Variants {
		gt.Equal(t, v.Origin, model.OriginAIGenerated)
		gt.Equal(t, v.ItemID, model.StudyItemID("chem-1"))
		gt.NoError(t, v.Validate())
	}
}

func TestGenerateWrapsSingleObject(t *testing.T) {
	uc := generate.New(reply("```json\n{\"type\": \"cloze\", \"difficulty\": \"medium\", \"content\": {\"text\": \"The {{c1}} is red\"}}\n```"))

	result := uc.Generate(context.Background(), "item-1", "colors")
	gt.False(t, result.Degraded)
	gt.A(t, result.Variants).Length(1)
	gt.Equal(t, result.First().Type, model.ItemTypeCloze)
}

func TestGenerateUnparseableReply(t *testing.T) {
	uc := generate.New(reply("Mitochondria is the powerhouse of the cell."))

	result := uc.Generate(context.Background(), "bio-2", "cells")
	gt.False(t, result.Degraded)
	gt.A(t, result.Variants).Length(1)
	gt.Equal(t, result.First().Type, model.ItemTypeFlashcard)
	gt.Equal(t, result.First().Content["text"], any("Mitochondria is the powerhouse of the cell."))
}

func TestGenerateNormalizesFields(t *testing.T) {
	uc := generate.New(reply(`[{"type": "essay", "difficulty": "extreme", "content": "Explain entropy"}]`))

	result := uc.Generate(context.Background(), "phys-1", "thermo")
	gt.A(t, result.Variants).Length(1)
	v := result.First()
	gt.Equal(t, v.Type, model.ItemTypeFlashcard)
	gt.Equal(t, v.Difficulty, model.DifficultyMedium)
	gt.Equal(t, v.Content["text"], any("Explain entropy"))
}

func TestGenerateDemotesInvalidQuiz(t *testing.T) {
	testCases := map[string]string{
		"missing choices":      `[{"type": "quiz", "difficulty": "easy", "content": {"question": "Q?", "answerIndex": 0}}]`,
		"index out of range":   `[{"type": "quiz", "difficulty": "easy", "content": {"question": "Q?", "choices": ["a", "b"], "answerIndex": 2}}]`,
		"fractional index":     `[{"type": "quiz", "difficulty": "easy", "content": {"question": "Q?", "choices": ["a", "b"], "answerIndex": 0.5}}]`,
		"too few choices":      `[{"type": "quiz", "difficulty": "easy", "content": {"question": "Q?", "choices": ["a"], "answerIndex": 0}}]`,
		"question not textual": `[{"type": "quiz", "difficulty": "easy", "content": {"question": 3, "choices": ["a", "b"], "answerIndex": 0}}]`,
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			uc := generate.New(reply(raw))
			result := uc.Generate(context.Background(), "item-1", "src")
			gt.A(t, result.Variants).Length(1)
			gt.Equal(t, result.First().Type, model.ItemTypeFlashcard)
		})
	}
}

func TestGenerateEmptyReply(t *testing.T) {
	uc := generate.New(reply("   "))

	result := uc.Generate(context.Background(), "item-1", "fallback source")
	gt.True(t, result.Degraded)
	gt.A(t, result.Variants).Length(1)
}

func TestGenerateTruncatesSource(t *testing.T) {
	backend := reply(`[]`)
	uc := generate.New(backend)

	source := strings.Repeat("a", 4000) + "ZZZZ"
	result := uc.Generate(context.Background(), "item-1", source)

	gt.Equal(t, backend.calls, 1)
	gt.True(t, strings.Contains(backend.lastPrompt, strings.Repeat("a", 4000)))
	gt.False(t, strings.Contains(backend.lastPrompt, "Z"))
	// an empty array produces the stub
	gt.True(t, result.Degraded)
}
