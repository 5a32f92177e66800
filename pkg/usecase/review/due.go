package review

import (
	"context"
	"slices"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DueItem is an item whose recommended interval has elapsed
type DueItem struct {
	ItemID         model.StudyItemID     `json:"itemId"`
	LastReviewedAt time.Time             `json:"lastReviewedAt"`
	DueAt          time.Time             `json:"dueAt"`
	Recommendation *model.Recommendation `json:"recommendation"`
}

// DueItems lists the items the learner has reviewed before and should review
// again at now, most overdue first
func (uc *UseCase) DueItems(ctx context.Context, learnerID model.LearnerID, now time.Time) ([]*DueItem, error) {
	if learnerID == "" {
		return nil, goerr.New("learner id is required")
	}

	events, err := uc.repo.ListOutcomes(ctx, model.OutcomeQuery{LearnerID: learnerID})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list outcomes", goerr.V("learner_id", learnerID))
	}

	byItem := make(map[model.StudyItemID][]*model.ReviewOutcomeEvent)
	var items []model.StudyItemID
	for _, ev := range events {
		if _, ok := byItem[ev.ItemID]; !ok {
			items = append(items, ev.ItemID)
		}
		byItem[ev.ItemID] = append(byItem[ev.ItemID], ev)
	}

	lambda := uc.resolveLambda(ctx, learnerID, nil)

	var due []*DueItem
	for _, itemID := range items {
		history := byItem[itemID]
		last := history[len(history)-1].Timestamp
		rec := uc.recommend(ctx, model.IntervalQuery{LearnerID: learnerID, ItemID: itemID}, lambda, history)

		dueAt := last.Add(time.Duration(rec.RecommendedIntervalSec * float64(time.Second)))
		if now.Before(dueAt) {
			continue
		}
		due = append(due, &DueItem{
			ItemID:         itemID,
			LastReviewedAt: last,
			DueAt:          dueAt,
			Recommendation: rec,
		})
	}

	slices.SortStableFunc(due, func(a, b *DueItem) int {
		return a.DueAt.Compare(b.DueAt)
	})
	return due, nil
}
