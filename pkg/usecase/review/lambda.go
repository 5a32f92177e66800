package review

import (
	"context"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/retention"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Profile returns the learner's profile, or an unsaved default one when the
// learner has none yet
func (uc *UseCase) Profile(ctx context.Context, learnerID model.LearnerID) *model.LearnerMemoryProfile {
	return uc.loadProfile(ctx, learnerID)
}

// SetLambda overwrites the learner's λ with a value from outside, e.g. an
// operator or the prediction service
func (uc *UseCase) SetLambda(ctx context.Context, learnerID model.LearnerID, lambda float64, source model.LambdaSource) (*model.LearnerMemoryProfile, error) {
	if learnerID == "" {
		return nil, goerr.New("learner id is required")
	}
	if err := model.ValidateLambda(lambda); err != nil {
		return nil, err
	}
	if source == "" {
		source = model.LambdaSourceManual
	}

	uc.profileMu.Lock()
	defer uc.profileMu.Unlock()

	profile := uc.loadProfile(ctx, learnerID)
	profile.Lambda = lambda
	profile.Source = source
	profile.UpdatedAt = uc.now()

	if err := uc.repo.PutProfile(ctx, profile); err != nil {
		return nil, goerr.Wrap(err, "failed to save learner profile", goerr.V("learner_id", learnerID))
	}
	return profile, nil
}

// AdjustLambda rescales λ from the learner's recent accuracy across all items
// and saves the result. It fails when the learner has no outcomes.
func (uc *UseCase) AdjustLambda(ctx context.Context, learnerID model.LearnerID) (*model.LearnerMemoryProfile, error) {
	events, err := uc.repo.ListOutcomes(ctx, model.OutcomeQuery{
		LearnerID: learnerID,
		Limit:     uc.window.Window,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list outcomes", goerr.V("learner_id", learnerID))
	}

	correctness := make([]int, len(events))
	for i, ev := range events {
		correctness[i] = ev.Correctness
	}

	uc.profileMu.Lock()
	defer uc.profileMu.Unlock()

	profile := uc.loadProfile(ctx, learnerID)
	adjusted, err := retention.AdjustWindow(profile.Lambda, correctness, uc.window)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to adjust lambda", goerr.V("learner_id", learnerID))
	}

	logging.From(ctx).Info("lambda adjusted",
		"learner_id", learnerID,
		"from", profile.Lambda,
		"to", adjusted,
		"events", len(events))

	profile.Lambda = adjusted
	profile.Source = model.LambdaSourceAutoAdjust
	profile.UpdatedAt = uc.now()
	uc.saveProfile(ctx, profile)

	return profile, nil
}
