package repository

import (
	"context"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrNotFound = goerr.New("not found")
)

// Repository defines the persistence used by the review scheduler
type Repository interface {
	// PutVariant saves a variant. Variants are immutable, so saving an
	// existing ID replaces it with identical content.
	PutVariant(ctx context.Context, v *model.Variant) error

	// ListVariants returns the variants of an item in insertion order
	ListVariants(ctx context.Context, itemID model.StudyItemID) ([]*model.Variant, error)

	// MarkVariantUsed records when a learner was last shown a variant
	MarkVariantUsed(ctx context.Context, variantID model.VariantID, learnerID model.LearnerID, at time.Time) error

	// GetVariantUsage returns the last use time of the given variants by a
	// learner. Variants never shown are absent from the map.
	GetVariantUsage(ctx context.Context, learnerID model.LearnerID, variantIDs []model.VariantID) (map[model.VariantID]time.Time, error)

	// GetProfile retrieves a learner profile, ErrNotFound if none exists
	GetProfile(ctx context.Context, learnerID model.LearnerID) (*model.LearnerMemoryProfile, error)

	// PutProfile saves a learner profile
	PutProfile(ctx context.Context, profile *model.LearnerMemoryProfile) error

	// PutOutcome appends an outcome event
	PutOutcome(ctx context.Context, ev *model.ReviewOutcomeEvent) error

	// ListOutcomes returns matching events ordered by timestamp, oldest first
	ListOutcomes(ctx context.Context, q model.OutcomeQuery) ([]*model.ReviewOutcomeEvent, error)

	// PutContentOCR merges OCR results into a content record
	PutContentOCR(ctx context.Context, id model.ContentID, text string, at time.Time) error

	// GetContent retrieves a content record, ErrNotFound if none exists
	GetContent(ctx context.Context, id model.ContentID) (*model.Content, error)
}
