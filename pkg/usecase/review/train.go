package review

import (
	"context"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/localmodel"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// TrainingEvents returns the outcome corpus. With a warehouse configured the
// events recorded since the given time are read from it, otherwise the whole
// repository log is used.
func (uc *UseCase) TrainingEvents(ctx context.Context, since time.Time) ([]*model.ReviewOutcomeEvent, error) {
	if uc.warehouse != nil {
		events, err := uc.warehouse.ListOutcomes(ctx, since)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read outcomes from warehouse")
		}
		return events, nil
	}

	events, err := uc.repo.ListOutcomes(ctx, model.OutcomeQuery{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list outcomes")
	}
	filtered := events[:0:0]
	for _, ev := range events {
		if !ev.Timestamp.Before(since) {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

// TrainLocal rebuilds the training corpus and fits the local model,
// overwriting the saved artifact
func (uc *UseCase) TrainLocal(ctx context.Context, since time.Time) (*localmodel.Artifact, error) {
	if uc.local == nil {
		return nil, localmodel.ErrUnavailable
	}

	events, err := uc.TrainingEvents(ctx, since)
	if err != nil {
		return nil, err
	}

	samples := localmodel.BuildSamples(events)
	art, err := uc.local.Train(ctx, samples)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to train local model",
			goerr.V("events", len(events)),
			goerr.V("samples", len(samples)))
	}
	return art, nil
}

// PredictLocal scores a review of the item candidateSec seconds from now
// with the local model only
func (uc *UseCase) PredictLocal(ctx context.Context, learnerID model.LearnerID, itemID model.StudyItemID, candidateSec float64) (float64, error) {
	if uc.local == nil {
		return 0, goerr.Wrap(localmodel.ErrNoLocalModel, "local model not configured")
	}
	history := uc.itemHistory(ctx, learnerID, itemID)
	return uc.local.Predict(ctx, localmodel.NextFeatures(history, uc.now(), candidateSec))
}
