package generate

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/system.md
var systemPrompt string

//go:embed prompt/generate.md
var generatePromptRaw string

var generatePromptTmpl = template.Must(template.New("generate").Parse(generatePromptRaw))

const (
	defaultSourceLimit = 4000
	defaultStubLimit   = 200
	defaultMaxItems    = 5
)

// Result is the outcome of a generation. It always carries at least one
// variant; Degraded is set when the variants are the deterministic stub.
type Result struct {
	Variants []*model.Variant
	Degraded bool
	// Reason explains a degraded result
	Reason string
}

// First returns the first generated variant
func (r *Result) First() *model.Variant {
	if r == nil || len(r.Variants) == 0 {
		return nil
	}
	return r.Variants[0]
}

// UseCase synthesizes review variants when no authored one is available
type UseCase struct {
	backend     Backend
	sourceLimit int
	stubLimit   int
	maxItems    int
	now         func() time.Time
	quizSchema  *jsonschema.Resolved
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithSourceLimit caps how much source text is sent upstream
func WithSourceLimit(n int) Option {
	return func(uc *UseCase) {
		uc.sourceLimit = n
	}
}

// WithMaxItems sets how many items are requested per call
func WithMaxItems(n int) Option {
	return func(uc *UseCase) {
		uc.maxItems = n
	}
}

// WithClock sets the time source for CreatedAt
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a generator. A nil backend means no service is configured and
// every call returns the stub without a network attempt.
func New(backend Backend, opts ...Option) *UseCase {
	resolved, err := quizContentSchema.Resolve(nil)
	if err != nil {
		// the schema is a package literal; failing here is a programming error
		panic(fmt.Sprintf("invalid quiz schema: %v", err))
	}

	uc := &UseCase{
		backend:     backend,
		sourceLimit: defaultSourceLimit,
		stubLimit:   defaultStubLimit,
		maxItems:    defaultMaxItems,
		now:         time.Now,
		quizSchema:  resolved,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Generate asks the backend for review items about itemID built from source.
// It never fails: a missing backend, a failed call or an empty reply yields a
// single stub variant.
func (uc *UseCase) Generate(ctx context.Context, itemID model.StudyItemID, source string) *Result {
	logger := logging.From(ctx)

	if uc.backend == nil {
		return uc.stub(itemID, source, "no generation backend configured")
	}

	var buf bytes.Buffer
	if err := generatePromptTmpl.Execute(&buf, map[string]any{
		"ItemID":   itemID,
		"Source":   truncate(source, uc.sourceLimit),
		"MaxItems": uc.maxItems,
	}); err != nil {
		logger.Warn("failed to build generation prompt", "error", err, "item_id", itemID)
		return uc.stub(itemID, source, "prompt build failed")
	}

	reply, err := uc.backend.Generate(ctx, systemPrompt, buf.String())
	if err != nil {
		logger.Warn("variant generation failed, using stub", "error", err, "item_id", itemID)
		return uc.stub(itemID, source, "generation failed")
	}

	variants := uc.parse(ctx, itemID, reply)
	if len(variants) == 0 {
		logger.Warn("generation returned no items, using stub", "item_id", itemID)
		return uc.stub(itemID, source, "empty reply")
	}

	return &Result{Variants: variants}
}

func (uc *UseCase) stub(itemID model.StudyItemID, source, reason string) *Result {
	return &Result{
		Variants: []*model.Variant{
			{
				ID:         model.NewVariantID(),
				ItemID:     itemID,
				Origin:     model.OriginAIGenerated,
				Type:       model.ItemTypeFlashcard,
				Difficulty: model.DifficultyMedium,
				Content:    map[string]any{"text": truncate(strings.TrimSpace(source), uc.stubLimit)},
				Tags:       []string{"stub"},
				CreatedAt:  uc.now(),
			},
		},
		Degraded: true,
		Reason:   reason,
	}
}

// parse reads the reply as a JSON array of items. A single object is wrapped
// into a one-element list and unparseable text becomes one flashcard holding
// the raw text.
func (uc *UseCase) parse(ctx context.Context, itemID model.StudyItemID, reply string) []*model.Variant {
	text := stripCodeFence(reply)
	if text == "" {
		return nil
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var single map[string]any
		if err := json.Unmarshal([]byte(text), &single); err == nil {
			items = []map[string]any{single}
		} else {
			logging.From(ctx).Debug("generation reply is not JSON, wrapping as flashcard", "item_id", itemID)
			items = []map[string]any{{
				"type":       string(model.ItemTypeFlashcard),
				"difficulty": string(model.DifficultyMedium),
				"content":    map[string]any{"text": text},
			}}
		}
	}

	now := uc.now()
	variants := make([]*model.Variant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		variants = append(variants, uc.toVariant(ctx, itemID, item, now))
	}
	return variants
}

func (uc *UseCase) toVariant(ctx context.Context, itemID model.StudyItemID, item map[string]any, now time.Time) *model.Variant {
	itemType := model.ItemType(stringField(item, "type"))
	if !itemType.Valid() {
		itemType = model.ItemTypeFlashcard
	}
	difficulty := model.Difficulty(stringField(item, "difficulty"))
	if !difficulty.Valid() {
		difficulty = model.DifficultyMedium
	}

	var content map[string]any
	switch c := item["content"].(type) {
	case map[string]any:
		content = c
	case string:
		content = map[string]any{"text": c}
	case nil:
		content = map[string]any{}
		for k, v := range item {
			if k != "type" && k != "difficulty" {
				content[k] = v
			}
		}
	default:
		content = map[string]any{"text": fmt.Sprint(c)}
	}

	if itemType == model.ItemTypeQuiz {
		if err := uc.validateQuiz(content); err != nil {
			logging.From(ctx).Debug("invalid quiz item, demoted to flashcard", "error", err, "item_id", itemID)
			itemType = model.ItemTypeFlashcard
		}
	}

	return &model.Variant{
		ID:         model.NewVariantID(),
		ItemID:     itemID,
		Origin:     model.OriginAIGenerated,
		Type:       itemType,
		Difficulty: difficulty,
		Content:    content,
		CreatedAt:  now,
	}
}

// validateQuiz checks the quiz shape and that answerIndex points at a choice
func (uc *UseCase) validateQuiz(content map[string]any) error {
	if err := uc.quizSchema.Validate(content); err != nil {
		return goerr.Wrap(err, "quiz content does not match schema")
	}

	idx, _ := content["answerIndex"].(float64)
	choices, _ := content["choices"].([]any)
	if idx != float64(int(idx)) || int(idx) >= len(choices) {
		return goerr.New("answerIndex out of range",
			goerr.V("answerIndex", content["answerIndex"]),
			goerr.V("choices", len(choices)))
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// stripCodeFence removes a surrounding ``` block that chat models often add
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate keeps at most n runes
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
