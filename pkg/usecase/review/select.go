package review

import (
	"context"
	"fmt"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/policy"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
)

type SelectionSource string

const (
	SelectionStore     SelectionSource = "store"
	SelectionGenerated SelectionSource = "generated"
	SelectionNone      SelectionSource = "none"
)

// Selection is the variant shown to a learner. Variant is nil when Source is
// SelectionNone, which callers must treat as "no content available".
type Selection struct {
	Variant *model.Variant  `json:"variant"`
	Source  SelectionSource `json:"source"`
	// Degraded is set when the variant is the generator's stub
	Degraded bool `json:"degraded,omitempty"`
}

// SelectVariant picks the variant of itemID that learnerID should see. Store
// and policy failures fall through to generation; it never returns an error.
func (uc *UseCase) SelectVariant(ctx context.Context, itemID model.StudyItemID, learnerID model.LearnerID) *Selection {
	logger := logging.From(ctx).With("item_id", itemID, "learner_id", learnerID)

	variants, err := uc.repo.ListVariants(ctx, itemID)
	if err != nil {
		logger.Warn("failed to fetch variants, falling back to generation", "error", err)
		variants = nil
	}

	if len(variants) > 0 {
		req := &policy.Request{
			ItemID:    itemID,
			LearnerID: learnerID,
			Variants:  variants,
			Now:       uc.now(),
		}
		if learnerID != "" {
			ids := make([]model.VariantID, len(variants))
			for i, v := range variants {
				ids[i] = v.ID
			}
			usage, err := uc.repo.GetVariantUsage(ctx, learnerID, ids)
			if err != nil {
				logger.Warn("failed to fetch variant usage", "error", err)
			}
			req.Usage = usage
		}

		chosen, err := uc.policy.Choose(ctx, req)
		if err != nil {
			logger.Warn("selection policy failed, falling back to generation", "error", err)
		} else if chosen != nil {
			return &Selection{Variant: chosen, Source: SelectionStore}
		}
	}

	if uc.generator == nil {
		return &Selection{Source: SelectionNone}
	}

	result := uc.generator.Generate(ctx, itemID, fallbackPrompt(itemID))
	v := result.First()
	if v == nil {
		return &Selection{Source: SelectionNone}
	}
	return &Selection{Variant: v, Source: SelectionGenerated, Degraded: result.Degraded}
}

func fallbackPrompt(itemID model.StudyItemID) string {
	return fmt.Sprintf("Create a short review item for study item %s.", itemID)
}
