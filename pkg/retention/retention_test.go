package retention_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/retention"
	"github.com/m-mizutani/gt"
)

func TestPredictMonotonicInInterval(t *testing.T) {
	for _, lambda := range []float64{1e-6, 0.05, 0.15, 0.3, 1} {
		prev := 1.0
		for _, interval := range []float64{0, 60, 3600, 86400, 604800, 2592000} {
			r := retention.Predict(lambda, 0, interval, 1)
			gt.True(t, r <= prev).Describe(fmt.Sprintf("lambda=%v interval=%v r=%v prev=%v", lambda, interval, r, prev))
			gt.True(t, r >= 0 && r <= 1)
			prev = r
		}
	}
}

func TestPredictMonotonicInLambda(t *testing.T) {
	for _, interval := range []float64{600, 86400, 604800} {
		prev := 1.0
		for _, lambda := range []float64{1e-6, 0.01, 0.15, 0.5, 1} {
			r := retention.Predict(lambda, 3600, interval, 2)
			gt.True(t, r <= prev).Describe(fmt.Sprintf("lambda=%v interval=%v", lambda, interval))
			prev = r
		}
	}
}

func TestPredictRepetitionStretchesInterval(t *testing.T) {
	first := retention.Predict(0.2, 0, 86400, 1)
	third := retention.Predict(0.2, 0, 86400, 3)
	gt.True(t, third > first)

	// non-positive n is treated as the first repetition
	gt.Equal(t, retention.Predict(0.2, 0, 86400, 0), first)
}

func TestRecommendExampleScenario(t *testing.T) {
	rec := retention.Recommend(0.3, 0, 1, []float64{3600, 86400, 604800}, retention.DefaultTarget)

	gt.A(t, rec.Candidates).Length(3)
	for i := 1; i < len(rec.Candidates); i++ {
		gt.True(t, rec.Candidates[i].PredictedRetention < rec.Candidates[i-1].PredictedRetention)
	}

	valid := map[float64]bool{3600: true, 86400: true, 604800: true}
	gt.True(t, valid[rec.RecommendedIntervalSec])
	gt.Equal(t, rec.LambdaUsed, 0.3)
	gt.Equal(t, rec.Source, model.SourceBaseline)
}

func TestRecommendDefaultLadder(t *testing.T) {
	rec := retention.Recommend(model.DefaultLambda, 0, 1, nil, retention.DefaultTarget)
	gt.A(t, rec.Candidates).Length(len(retention.DefaultCandidates))
	gt.True(t, rec.PredictedRetention >= retention.DefaultTarget)
}

func TestChoose(t *testing.T) {
	testCases := []struct {
		name       string
		candidates []model.CandidateInterval
		target     float64
		expect     float64
	}{
		{
			name: "longest above target",
			candidates: []model.CandidateInterval{
				{IntervalSec: 600, PredictedRetention: 0.99},
				{IntervalSec: 3600, PredictedRetention: 0.95},
				{IntervalSec: 86400, PredictedRetention: 0.91},
				{IntervalSec: 604800, PredictedRetention: 0.6},
			},
			target: 0.9,
			expect: 86400,
		},
		{
			name: "unordered input",
			candidates: []model.CandidateInterval{
				{IntervalSec: 86400, PredictedRetention: 0.92},
				{IntervalSec: 600, PredictedRetention: 0.99},
				{IntervalSec: 604800, PredictedRetention: 0.5},
			},
			target: 0.9,
			expect: 86400,
		},
		{
			name: "none reach target picks highest retention",
			candidates: []model.CandidateInterval{
				{IntervalSec: 86400, PredictedRetention: 0.7},
				{IntervalSec: 3600, PredictedRetention: 0.8},
				{IntervalSec: 604800, PredictedRetention: 0.2},
			},
			target: 0.9,
			expect: 3600,
		},
		{
			name: "tie goes to shorter interval",
			candidates: []model.CandidateInterval{
				{IntervalSec: 7200, PredictedRetention: 0.5},
				{IntervalSec: 3600, PredictedRetention: 0.5},
			},
			target: 0.9,
			expect: 3600,
		},
		{
			name: "exactly at target counts",
			candidates: []model.CandidateInterval{
				{IntervalSec: 600, PredictedRetention: 0.95},
				{IntervalSec: 3600, PredictedRetention: 0.9},
			},
			target: 0.9,
			expect: 3600,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chosen, ok := retention.Choose(tc.candidates, tc.target)
			gt.True(t, ok)
			gt.Equal(t, chosen.IntervalSec, tc.expect)
		})
	}

	_, ok := retention.Choose(nil, 0.9)
	gt.False(t, ok)
}

func TestAccumulatedS(t *testing.T) {
	events := []*model.ReviewOutcomeEvent{
		{TimeSinceLastReviewSec: 0, NReps: 0},
		{TimeSinceLastReviewSec: 86400, NReps: 2},
		{TimeSinceLastReviewSec: 172800, NReps: 4},
	}
	gt.Equal(t, retention.AccumulatedS(events), 86400.0)
	gt.Equal(t, retention.AccumulatedS(nil), 0.0)
}

func TestValidCandidates(t *testing.T) {
	got := retention.ValidCandidates([]float64{86400, -1, 600, 0, 600, 3600, math.Inf(1), math.NaN()})
	gt.Equal(t, got, []float64{86400, 600, 600, 3600})
	gt.A(t, retention.ValidCandidates(nil)).Length(0)
}

func TestRecommendKeepsSuppliedOrder(t *testing.T) {
	rec := retention.Recommend(0.3, 0, 1, []float64{86400, 3600, 3600}, 0.9)
	gt.A(t, rec.Candidates).Length(3)
	gt.Equal(t, rec.Candidates[0].IntervalSec, 86400.0)
	gt.Equal(t, rec.Candidates[1].IntervalSec, 3600.0)
	gt.Equal(t, rec.Candidates[2].IntervalSec, 3600.0)
}

func TestNonIncreasing(t *testing.T) {
	in := []model.CandidateInterval{
		{IntervalSec: 604800, PredictedRetention: 0.99},
		{IntervalSec: 3600, PredictedRetention: 0.2},
		{IntervalSec: 86400, PredictedRetention: 0.7},
		{IntervalSec: 600, PredictedRetention: 0.5},
	}
	got := retention.NonIncreasing(in)

	gt.A(t, got).Length(4)
	gt.Equal(t, got[0], model.CandidateInterval{IntervalSec: 604800, PredictedRetention: 0.2})
	gt.Equal(t, got[1], model.CandidateInterval{IntervalSec: 3600, PredictedRetention: 0.2})
	gt.Equal(t, got[2], model.CandidateInterval{IntervalSec: 86400, PredictedRetention: 0.2})
	gt.Equal(t, got[3], model.CandidateInterval{IntervalSec: 600, PredictedRetention: 0.5})

	// input untouched
	gt.Equal(t, in[0].PredictedRetention, 0.99)

	// already decreasing values pass through
	dec := retention.Evaluate(0.3, 0, 1, []float64{3600, 86400, 604800})
	gt.Equal(t, retention.NonIncreasing(dec), dec)
}

func TestOnlineUpdate(t *testing.T) {
	cfg := retention.DefaultOnlineConfig()

	t.Run("forgotten item raises lambda", func(t *testing.T) {
		next := retention.OnlineUpdate(0.15, 0, 3*86400, 1, 0, cfg)
		gt.True(t, next > 0.15)
	})

	t.Run("recalled item lowers lambda", func(t *testing.T) {
		next := retention.OnlineUpdate(0.15, 0, 3*86400, 1, 1, cfg)
		gt.True(t, next < 0.15)
	})

	t.Run("clamped to bounds", func(t *testing.T) {
		cfg := retention.UpdateConfig{LearningRate: 1000, MinLambda: retention.MinLambda, MaxLambda: retention.MaxLambda}
		gt.Equal(t, retention.OnlineUpdate(0.15, 0, 86400, 1, 1, cfg), retention.MinLambda)
		gt.Equal(t, retention.OnlineUpdate(0.15, 0, 86400, 1, 0, cfg), retention.MaxLambda)
	})
}

func TestAdjustWindow(t *testing.T) {
	cfg := retention.DefaultWindowConfig()

	t.Run("low accuracy raises lambda", func(t *testing.T) {
		next, err := retention.AdjustWindow(0.15, []int{0, 0, 1, 0}, cfg)
		gt.NoError(t, err)
		gt.True(t, next > 0.15)
	})

	t.Run("high accuracy lowers lambda", func(t *testing.T) {
		next, err := retention.AdjustWindow(0.15, []int{1, 1, 1, 1}, cfg)
		gt.NoError(t, err)
		gt.True(t, next < 0.15)
	})

	t.Run("only the window counts", func(t *testing.T) {
		cfg := cfg
		cfg.Window = 2
		next, err := retention.AdjustWindow(0.15, []int{0, 0, 0, 0, 1, 1}, cfg)
		gt.NoError(t, err)
		gt.True(t, next < 0.15)
	})

	t.Run("no events", func(t *testing.T) {
		_, err := retention.AdjustWindow(0.15, nil, cfg)
		gt.True(t, errors.Is(err, retention.ErrNoEvents))
	})
}
