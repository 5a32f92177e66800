package review

import (
	"context"
	"errors"

	"github.com/eduardo5010/study-cycle/pkg/localmodel"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/eduardo5010/study-cycle/pkg/retention"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
)

const localModelName = "local-feedforward"

// RecommendNextInterval chooses when the item should be reviewed again. It
// consults the local model, then the remote predictor, and finally the
// exponential baseline, so it always returns a recommendation. The local
// model does not take λ, so it is skipped when the query fixes one.
func (uc *UseCase) RecommendNextInterval(ctx context.Context, q model.IntervalQuery) *model.Recommendation {
	lambda := uc.resolveLambda(ctx, q.LearnerID, q.Lambda)
	history := uc.itemHistory(ctx, q.LearnerID, q.ItemID)
	return uc.recommend(ctx, q, lambda, history)
}

func (uc *UseCase) recommend(ctx context.Context, q model.IntervalQuery, lambda float64, history []*model.ReviewOutcomeEvent) *model.Recommendation {
	logger := logging.From(ctx).With("learner_id", q.LearnerID, "item_id", q.ItemID)

	candidates := retention.ValidCandidates(q.CandidateIntervals)
	if len(candidates) == 0 {
		candidates = uc.candidates
	}

	s := retention.AccumulatedS(recent(history, historyWindow))
	if q.SumPrevIntervalOverN != nil && *q.SumPrevIntervalOverN >= 0 {
		s = *q.SumPrevIntervalOverN
	}
	nNext := len(history) + 1
	if q.NNext != nil && *q.NNext > 0 {
		nNext = *q.NNext
	}

	explicit := q.Lambda != nil && model.ValidateLambda(*q.Lambda) == nil
	if !explicit {
		if rec := uc.recommendLocal(ctx, candidates, s, history); rec != nil {
			return rec
		}
	}

	if uc.predictor != nil {
		req := &model.PredictRequest{
			UserID:             q.LearnerID,
			ItemID:             q.ItemID,
			CandidateIntervals: candidates,
			Lambda:             &lambda,
			SumTOverN:          &s,
			NNext:              &nNext,
		}
		resp, err := uc.predictor.Predict(ctx, req)
		if err != nil {
			logger.Warn("remote prediction failed, using baseline", "error", err)
		} else if rec := uc.fromRemote(resp, lambda, s); rec != nil {
			return rec
		} else {
			logger.Warn("remote prediction returned no usable interval, using baseline")
		}
	}

	return retention.Recommend(lambda, s, nNext, candidates, uc.target)
}

func (uc *UseCase) recommendLocal(ctx context.Context, candidates []float64, s float64, history []*model.ReviewOutcomeEvent) *model.Recommendation {
	if uc.local == nil {
		return nil
	}

	now := uc.now()
	features := make([]model.Features, len(candidates))
	for i, c := range candidates {
		features[i] = localmodel.NextFeatures(history, now, c)
	}

	ps, err := uc.local.PredictBatch(ctx, features)
	if err != nil {
		if !errors.Is(err, localmodel.ErrNoLocalModel) {
			logging.From(ctx).Warn("local prediction failed", "error", err)
		}
		return nil
	}

	evaluated := make([]model.CandidateInterval, len(candidates))
	for i, c := range candidates {
		evaluated[i] = model.CandidateInterval{IntervalSec: c, PredictedRetention: ps[i]}
	}
	// the network is not monotone in the interval
	evaluated = retention.NonIncreasing(evaluated)
	chosen, ok := retention.Choose(evaluated, uc.target)
	if !ok {
		return nil
	}

	return &model.Recommendation{
		RecommendedIntervalSec: chosen.IntervalSec,
		PredictedRetention:     chosen.PredictedRetention,
		S:                      s,
		Candidates:             evaluated,
		Source:                 model.SourceLocalModel,
		Model:                  localModelName,
	}
}

// fromRemote applies the local threshold rule to the service's per-candidate
// predictions. Without candidates the service's own choice is taken as is.
func (uc *UseCase) fromRemote(resp *model.PredictResponse, lambda, s float64) *model.Recommendation {
	if resp == nil {
		return nil
	}
	if resp.Lambda > 0 {
		lambda = resp.Lambda
	}
	rec := &model.Recommendation{
		RecommendedIntervalSec: resp.RecommendedIntervalSec,
		PredictedRetention:     resp.PredictedRetention,
		LambdaUsed:             lambda,
		S:                      resp.S,
		Candidates:             resp.Candidates,
		Source:                 model.SourceRemote,
		Model:                  resp.Model,
	}
	if rec.S == 0 {
		rec.S = s
	}

	if chosen, ok := retention.Choose(resp.Candidates, uc.target); ok {
		rec.RecommendedIntervalSec = chosen.IntervalSec
		rec.PredictedRetention = chosen.PredictedRetention
	}
	if rec.RecommendedIntervalSec <= 0 {
		return nil
	}
	return rec
}

// resolveLambda prefers an explicit valid value, then the stored profile,
// then the population default
func (uc *UseCase) resolveLambda(ctx context.Context, learnerID model.LearnerID, explicit *float64) float64 {
	if explicit != nil {
		if err := model.ValidateLambda(*explicit); err == nil {
			return *explicit
		}
		logging.From(ctx).Warn("ignoring out of range lambda", "lambda", *explicit)
	}
	if learnerID == "" {
		return uc.defaultLambda
	}

	profile, err := uc.repo.GetProfile(ctx, learnerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logging.From(ctx).Warn("failed to load learner profile", "error", err, "learner_id", learnerID)
		}
		return uc.defaultLambda
	}
	return profile.Lambda
}

// itemHistory returns the learner's reviews of an item, oldest first. A
// lookup failure is treated as no history.
func (uc *UseCase) itemHistory(ctx context.Context, learnerID model.LearnerID, itemID model.StudyItemID) []*model.ReviewOutcomeEvent {
	if learnerID == "" || itemID == "" {
		return nil
	}
	events, err := uc.repo.ListOutcomes(ctx, model.OutcomeQuery{LearnerID: learnerID, ItemID: itemID})
	if err != nil {
		logging.From(ctx).Warn("failed to load review history", "error", err,
			"learner_id", learnerID, "item_id", itemID)
		return nil
	}
	return events
}

func recent(events []*model.ReviewOutcomeEvent, n int) []*model.ReviewOutcomeEvent {
	if len(events) > n {
		return events[len(events)-n:]
	}
	return events
}
