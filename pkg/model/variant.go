package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidVariant = goerr.New("invalid variant")
)

// StudyItemID identifies a study item. Items own zero or more variants.
type StudyItemID string

type VariantID string

// NewVariantID generates a new unique VariantID
func NewVariantID() VariantID {
	return VariantID(uuid.New().String())
}

type VariantOrigin string

const (
	OriginHuman       VariantOrigin = "human"
	OriginAIGenerated VariantOrigin = "ai-generated"
)

type ItemType string

const (
	ItemTypeFlashcard ItemType = "flashcard"
	ItemTypeQuiz      ItemType = "quiz"
	ItemTypeExercise  ItemType = "exercise"
	ItemTypeCloze     ItemType = "cloze"
)

// Valid reports whether the item type is one of the known review item types
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeFlashcard, ItemTypeQuiz, ItemTypeExercise, ItemTypeCloze:
		return true
	default:
		return false
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether the difficulty is one of easy, medium or hard
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Variant is one concrete rendering of a study item. Variants are never
// mutated after creation; a new Variant supersedes an old one.
type Variant struct {
	ID         VariantID      `json:"id" firestore:"id"`
	ItemID     StudyItemID    `json:"item_id" firestore:"item_id"`
	Origin     VariantOrigin  `json:"origin" firestore:"origin"`
	Type       ItemType       `json:"type" firestore:"type"`
	Difficulty Difficulty     `json:"difficulty" firestore:"difficulty"`
	Content    map[string]any `json:"content" firestore:"content"`
	Tags       []string       `json:"tags,omitempty" firestore:"tags"`
	AuthorID   string         `json:"author_id,omitempty" firestore:"author_id"`
	CreatedAt  time.Time      `json:"created_at" firestore:"created_at"`
}

// Validate checks if the variant can be stored
func (v *Variant) Validate() error {
	if v.ID == "" {
		return goerr.Wrap(ErrInvalidVariant, "variant id is empty")
	}
	if v.ItemID == "" {
		return goerr.Wrap(ErrInvalidVariant, "item id is empty", goerr.V("variant_id", v.ID))
	}
	switch v.Origin {
	case OriginHuman, OriginAIGenerated:
	default:
		return goerr.Wrap(ErrInvalidVariant, "unknown origin",
			goerr.V("variant_id", v.ID),
			goerr.V("origin", v.Origin))
	}
	return nil
}

// Text returns a human readable line for the variant content. It looks for
// the common content keys in order and falls back to the empty string.
func (v *Variant) Text() string {
	for _, key := range []string{"question", "front", "text", "prompt"} {
		if s, ok := v.Content[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
