package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type usageKey struct {
	learner model.LearnerID
	variant model.VariantID
}

// Memory implements Repository in process memory
type Memory struct {
	mu       sync.RWMutex
	variants map[model.StudyItemID][]*model.Variant
	usage    map[usageKey]time.Time
	profiles map[model.LearnerID]*model.LearnerMemoryProfile
	outcomes []*model.ReviewOutcomeEvent
	contents map[model.ContentID]*model.Content
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		variants: make(map[model.StudyItemID][]*model.Variant),
		usage:    make(map[usageKey]time.Time),
		profiles: make(map[model.LearnerID]*model.LearnerMemoryProfile),
		contents: make(map[model.ContentID]*model.Content),
	}
}

func (r *Memory) PutVariant(ctx context.Context, v *model.Variant) error {
	if err := v.Validate(); err != nil {
		return goerr.Wrap(err, "failed to put variant")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *v
	list := r.variants[v.ItemID]
	for i, existing := range list {
		if existing.ID == v.ID {
			list[i] = &copied
			return nil
		}
	}
	r.variants[v.ItemID] = append(list, &copied)
	return nil
}

func (r *Memory) ListVariants(ctx context.Context, itemID model.StudyItemID) ([]*model.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.variants[itemID]
	out := make([]*model.Variant, len(list))
	for i, v := range list {
		copied := *v
		out[i] = &copied
	}
	return out, nil
}

func (r *Memory) MarkVariantUsed(ctx context.Context, variantID model.VariantID, learnerID model.LearnerID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage[usageKey{learner: learnerID, variant: variantID}] = at
	return nil
}

func (r *Memory) GetVariantUsage(ctx context.Context, learnerID model.LearnerID, variantIDs []model.VariantID) (map[model.VariantID]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[model.VariantID]time.Time)
	for _, id := range variantIDs {
		if at, ok := r.usage[usageKey{learner: learnerID, variant: id}]; ok {
			out[id] = at
		}
	}
	return out, nil
}

func (r *Memory) GetProfile(ctx context.Context, learnerID model.LearnerID) (*model.LearnerMemoryProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[learnerID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "profile not found", goerr.V("learner_id", learnerID))
	}
	copied := *p
	return &copied, nil
}

func (r *Memory) PutProfile(ctx context.Context, profile *model.LearnerMemoryProfile) error {
	if err := model.ValidateLambda(profile.Lambda); err != nil {
		return goerr.Wrap(err, "failed to put profile", goerr.V("learner_id", profile.LearnerID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *profile
	r.profiles[profile.LearnerID] = &copied
	return nil
}

func (r *Memory) PutOutcome(ctx context.Context, ev *model.ReviewOutcomeEvent) error {
	if err := ev.Validate(); err != nil {
		return goerr.Wrap(err, "failed to put outcome")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ev
	r.outcomes = append(r.outcomes, &copied)
	return nil
}

func (r *Memory) ListOutcomes(ctx context.Context, q model.OutcomeQuery) ([]*model.ReviewOutcomeEvent, error) {
	r.mu.RLock()
	var out []*model.ReviewOutcomeEvent
	for _, ev := range r.outcomes {
		if q.LearnerID != "" && ev.LearnerID != q.LearnerID {
			continue
		}
		if q.ItemID != "" && ev.ItemID != q.ItemID {
			continue
		}
		copied := *ev
		out = append(out, &copied)
	}
	r.mu.RUnlock()

	return orderOutcomes(out, q.Limit), nil
}

func (r *Memory) PutContentOCR(ctx context.Context, id model.ContentID, text string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contents[id]
	if !ok {
		c = &model.Content{ID: id}
		r.contents[id] = c
	}
	processed := at
	c.OCRText = text
	c.OCRProcessedAt = &processed
	c.UpdatedAt = at
	return nil
}

func (r *Memory) GetContent(ctx context.Context, id model.ContentID) (*model.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contents[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "content not found", goerr.V("content_id", id))
	}
	copied := *c
	return &copied, nil
}

// orderOutcomes sorts events oldest first and keeps the newest limit events
// when limit is positive
func orderOutcomes(events []*model.ReviewOutcomeEvent, limit int) []*model.ReviewOutcomeEvent {
	slices.SortStableFunc(events, func(a, b *model.ReviewOutcomeEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}
