package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidCorrectness = goerr.New("correctness must be 0 or 1")
	ErrInvalidOutcome     = goerr.New("invalid outcome event")
)

type EventID string

// NewEventID generates a new unique EventID
func NewEventID() EventID {
	return EventID(uuid.New().String())
}

// ReviewOutcomeEvent is an immutable record of one review attempt. Corrections
// are recorded as new events.
type ReviewOutcomeEvent struct {
	ID                     EventID     `json:"id" firestore:"id" bigquery:"id"`
	LearnerID              LearnerID   `json:"learner_id" firestore:"learner_id" bigquery:"learner_id"`
	ItemID                 StudyItemID `json:"item_id" firestore:"item_id" bigquery:"item_id"`
	VariantID              VariantID   `json:"variant_id,omitempty" firestore:"variant_id" bigquery:"variant_id"`
	Correctness            int         `json:"correctness" firestore:"correctness" bigquery:"correctness"`
	ResponseTimeMs         int64       `json:"response_time_ms,omitempty" firestore:"response_time_ms" bigquery:"response_time_ms"`
	NReps                  int         `json:"n_reps,omitempty" firestore:"n_reps" bigquery:"n_reps"`
	TimeSinceLastReviewSec float64     `json:"time_since_last_review_sec,omitempty" firestore:"time_since_last_review_sec" bigquery:"time_since_last_review_sec"`
	Timestamp              time.Time   `json:"timestamp" firestore:"timestamp" bigquery:"timestamp"`
}

// Validate checks required fields and the binary correctness value
func (e *ReviewOutcomeEvent) Validate() error {
	if e.LearnerID == "" {
		return goerr.Wrap(ErrInvalidOutcome, "learner id is empty")
	}
	if e.ItemID == "" {
		return goerr.Wrap(ErrInvalidOutcome, "item id is empty", goerr.V("learner_id", e.LearnerID))
	}
	if e.Correctness != 0 && e.Correctness != 1 {
		return goerr.Wrap(ErrInvalidCorrectness, "invalid correctness", goerr.V("correctness", e.Correctness))
	}
	if e.NReps < 0 || e.TimeSinceLastReviewSec < 0 || e.ResponseTimeMs < 0 {
		return goerr.Wrap(ErrInvalidOutcome, "negative counter",
			goerr.V("n_reps", e.NReps),
			goerr.V("time_since_last_review_sec", e.TimeSinceLastReviewSec),
			goerr.V("response_time_ms", e.ResponseTimeMs))
	}
	return nil
}

// OutcomeQuery filters the outcome log. Empty fields match everything; Limit
// keeps only the most recent events when positive.
type OutcomeQuery struct {
	LearnerID LearnerID
	ItemID    StudyItemID
	Limit     int
}
