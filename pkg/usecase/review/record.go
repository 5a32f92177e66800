package review

import (
	"context"
	"errors"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/eduardo5010/study-cycle/pkg/retention"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
)

// Outcome is one answered review. Nil optional fields are derived from the
// learner's history on the item.
type Outcome struct {
	LearnerID              model.LearnerID
	ItemID                 model.StudyItemID
	VariantID              model.VariantID
	Correctness            int
	ResponseTimeMs         int64
	NReps                  *int
	TimeSinceLastReviewSec *float64
	// Timestamp defaults to now
	Timestamp time.Time
}

// Recorded reports what Record managed to do
type Recorded struct {
	// Event is nil when the outcome was rejected as invalid
	Event     *model.ReviewOutcomeEvent `json:"event"`
	Persisted bool                      `json:"persisted"`
	// Lambda is the learner's decay rate after the update
	Lambda float64 `json:"lambda"`
}

// Record stores an outcome, forwards it to telemetry and updates the
// learner's λ. Every failure is logged and swallowed.
func (uc *UseCase) Record(ctx context.Context, o Outcome) *Recorded {
	logger := logging.From(ctx).With("learner_id", o.LearnerID, "item_id", o.ItemID)

	history := uc.itemHistory(ctx, o.LearnerID, o.ItemID)

	ev := &model.ReviewOutcomeEvent{
		ID:             model.NewEventID(),
		LearnerID:      o.LearnerID,
		ItemID:         o.ItemID,
		VariantID:      o.VariantID,
		Correctness:    o.Correctness,
		ResponseTimeMs: o.ResponseTimeMs,
		Timestamp:      o.Timestamp,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = uc.now()
	}
	ev.NReps = len(history) + 1
	if o.NReps != nil {
		ev.NReps = *o.NReps
	}
	if o.TimeSinceLastReviewSec != nil {
		ev.TimeSinceLastReviewSec = *o.TimeSinceLastReviewSec
	} else if len(history) > 0 {
		if d := ev.Timestamp.Sub(history[len(history)-1].Timestamp).Seconds(); d > 0 {
			ev.TimeSinceLastReviewSec = d
		}
	}

	if err := ev.Validate(); err != nil {
		logger.Warn("discarding invalid outcome", "error", err)
		return &Recorded{}
	}

	result := &Recorded{Event: ev}
	if err := uc.repo.PutOutcome(ctx, ev); err != nil {
		logger.Warn("failed to persist outcome", "error", err)
	} else {
		result.Persisted = true
	}

	uc.LogEvent(ctx, ev)

	if ev.VariantID != "" {
		if err := uc.repo.MarkVariantUsed(ctx, ev.VariantID, ev.LearnerID, ev.Timestamp); err != nil {
			logger.Warn("failed to mark variant used", "error", err, "variant_id", ev.VariantID)
		}
	}

	result.Lambda = uc.updateLambda(ctx, ev, history)
	return result
}

// LogEvent forwards an outcome to the telemetry sinks. Delivery is best
// effort and at most once.
func (uc *UseCase) LogEvent(ctx context.Context, ev *model.ReviewOutcomeEvent) {
	logger := logging.From(ctx)

	if uc.predictor != nil {
		if err := uc.predictor.LogEvent(ctx, model.NewOutcomePayload(ev)); err != nil {
			logger.Warn("failed to send outcome telemetry", "error", err, "event_id", ev.ID)
		}
	}
	if uc.warehouse != nil {
		if err := uc.warehouse.InsertOutcomes(ctx, []*model.ReviewOutcomeEvent{ev}); err != nil {
			logger.Warn("failed to stream outcome to warehouse", "error", err, "event_id", ev.ID)
		}
	}
}

// updateLambda applies one online step using the history before ev
func (uc *UseCase) updateLambda(ctx context.Context, ev *model.ReviewOutcomeEvent, history []*model.ReviewOutcomeEvent) float64 {
	uc.profileMu.Lock()
	defer uc.profileMu.Unlock()

	profile := uc.loadProfile(ctx, ev.LearnerID)
	s := retention.AccumulatedS(recent(history, historyWindow))
	profile.Lambda = retention.OnlineUpdate(profile.Lambda, s, ev.TimeSinceLastReviewSec, ev.NReps, float64(ev.Correctness), uc.online)
	profile.Source = model.LambdaSourceOnline
	profile.UpdatedAt = uc.now()

	uc.saveProfile(ctx, profile)
	return profile.Lambda
}

// loadProfile returns the stored profile or a fresh default one
func (uc *UseCase) loadProfile(ctx context.Context, learnerID model.LearnerID) *model.LearnerMemoryProfile {
	profile, err := uc.repo.GetProfile(ctx, learnerID)
	if err == nil {
		return profile
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logging.From(ctx).Warn("failed to load learner profile, using default", "error", err, "learner_id", learnerID)
	}
	profile = model.NewLearnerMemoryProfile(learnerID, uc.now())
	profile.Lambda = uc.defaultLambda
	return profile
}

// saveProfile persists the profile and pushes λ to the prediction service,
// logging failures of either
func (uc *UseCase) saveProfile(ctx context.Context, profile *model.LearnerMemoryProfile) {
	logger := logging.From(ctx).With("learner_id", profile.LearnerID)

	if err := uc.repo.PutProfile(ctx, profile); err != nil {
		logger.Warn("failed to save learner profile", "error", err)
	}

	if uc.predictor != nil {
		payload := &model.LambdaPayload{
			UserID: profile.LearnerID,
			Lambda: profile.Lambda,
			Source: profile.Source,
		}
		if err := uc.predictor.PutLambda(ctx, profile.LearnerID, payload); err != nil {
			logger.Warn("failed to sync lambda", "error", err)
		}
	}
}
