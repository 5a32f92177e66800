package model

// CandidateInterval is a proposed wait time in seconds paired with the
// retention predicted for it. Not persisted.
type CandidateInterval struct {
	IntervalSec        float64 `json:"intervalSec"`
	PredictedRetention float64 `json:"predictedRetention"`
}

type RecommendationSource string

const (
	SourceLocalModel RecommendationSource = "local-model"
	SourceRemote     RecommendationSource = "remote"
	SourceBaseline   RecommendationSource = "baseline"
)

// IntervalQuery is the input of interval recommendation. Nil pointers and an
// empty candidate list mean "derive or use the default".
type IntervalQuery struct {
	LearnerID            LearnerID
	ItemID               StudyItemID
	Lambda               *float64
	SumPrevIntervalOverN *float64
	NNext                *int
	CandidateIntervals   []float64
}

// Recommendation is the chosen next interval. Source tells which predictor
// produced it so callers can tell a degraded answer from a personalised one.
// LambdaUsed is zero when the local model answered, since it does not use λ.
type Recommendation struct {
	RecommendedIntervalSec float64              `json:"recommendedIntervalSec"`
	PredictedRetention     float64              `json:"predictedRetention"`
	LambdaUsed             float64              `json:"lambdaUsed"`
	S                      float64              `json:"S"`
	Candidates             []CandidateInterval  `json:"candidates"`
	Source                 RecommendationSource `json:"source"`
	Model                  string               `json:"model,omitempty"`
}
