package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidLambda = goerr.New("lambda must be in (0, 1]")
)

// DefaultLambda is the population default decay rate per day, used until a
// learner has evidence of their own.
const DefaultLambda = 0.15

type LearnerID string

type LambdaSource string

const (
	LambdaSourceDefault    LambdaSource = "default"
	LambdaSourceOnline     LambdaSource = "online"
	LambdaSourceAutoAdjust LambdaSource = "auto-adjust"
	LambdaSourceRemote     LambdaSource = "remote"
	LambdaSourceManual     LambdaSource = "manual"
)

// LearnerMemoryProfile holds the per-learner forgetting rate. Smaller Lambda
// means slower forgetting.
type LearnerMemoryProfile struct {
	LearnerID LearnerID    `json:"learner_id" firestore:"learner_id"`
	Lambda    float64      `json:"lambda" firestore:"lambda"`
	Source    LambdaSource `json:"source" firestore:"source"`
	UpdatedAt time.Time    `json:"updated_at" firestore:"updated_at"`
}

// NewLearnerMemoryProfile creates a profile seeded with DefaultLambda
func NewLearnerMemoryProfile(id LearnerID, now time.Time) *LearnerMemoryProfile {
	return &LearnerMemoryProfile{
		LearnerID: id,
		Lambda:    DefaultLambda,
		Source:    LambdaSourceDefault,
		UpdatedAt: now,
	}
}

// ValidateLambda checks that lambda is in the open-closed interval (0, 1]
func ValidateLambda(lambda float64) error {
	if !(lambda > 0 && lambda <= 1) {
		return goerr.Wrap(ErrInvalidLambda, "lambda out of range", goerr.V("lambda", lambda))
	}
	return nil
}
