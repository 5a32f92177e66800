package model

import "time"

// OutcomePayload is the JSON body of POST /api/ml/events
type OutcomePayload struct {
	UserID                 LearnerID   `json:"userId"`
	ItemID                 StudyItemID `json:"itemId"`
	Timestamp              *time.Time  `json:"timestamp,omitempty"`
	Correctness            *int        `json:"correctness"`
	ResponseTimeMs         int64       `json:"responseTimeMs,omitempty"`
	NReps                  int         `json:"nReps,omitempty"`
	TimeSinceLastReviewSec float64     `json:"timeSinceLastReviewSec,omitempty"`
}

// NewOutcomePayload converts an event into the telemetry wire shape
func NewOutcomePayload(ev *ReviewOutcomeEvent) *OutcomePayload {
	ts := ev.Timestamp
	correctness := ev.Correctness
	return &OutcomePayload{
		UserID:                 ev.LearnerID,
		ItemID:                 ev.ItemID,
		Timestamp:              &ts,
		Correctness:            &correctness,
		ResponseTimeMs:         ev.ResponseTimeMs,
		NReps:                  ev.NReps,
		TimeSinceLastReviewSec: ev.TimeSinceLastReviewSec,
	}
}

// PredictRequest is the JSON body of POST /api/ml/predict
type PredictRequest struct {
	UserID             LearnerID   `json:"userId,omitempty"`
	ItemID             StudyItemID `json:"itemId,omitempty"`
	CandidateIntervals []float64   `json:"candidateIntervals,omitempty"`
	Lambda             *float64    `json:"lambda,omitempty"`
	SumTOverN          *float64    `json:"sum_t_over_n,omitempty"`
	NNext              *int        `json:"n_next,omitempty"`
}

// PredictResponse is the success body of POST /api/ml/predict
type PredictResponse struct {
	RecommendedIntervalSec float64             `json:"recommendedIntervalSec"`
	PredictedRetention     float64             `json:"predictedRetention"`
	Model                  string              `json:"model"`
	Lambda                 float64             `json:"lambda"`
	S                      float64             `json:"S"`
	Candidates             []CandidateInterval `json:"candidates"`
}

// LambdaPayload is the body of GET and POST /api/ml/lambda/{userId}
type LambdaPayload struct {
	UserID LearnerID    `json:"userId,omitempty"`
	Lambda float64      `json:"lambda"`
	Source LambdaSource `json:"source,omitempty"`
}
