// Package retention implements the exponential forgetting law used to rank
// candidate review intervals and to fit the per-learner decay rate.
//
// Retention after waiting t seconds:
//
//	R(t) = exp(-λ · (S + t/n))
//
// where S = Σ t_i/n_i accumulates the learner's earlier gaps on the item and
// n is the repetition number of the upcoming review. Times are seconds at the
// API boundary and days inside the exponent, so λ is a per-day rate.
package retention

import (
	"cmp"
	"math"
	"slices"

	"github.com/eduardo5010/study-cycle/pkg/model"
)

const (
	// DefaultTarget is the minimum acceptable predicted retention
	DefaultTarget = 0.9

	// ModelName labels recommendations computed by this package
	ModelName = "exponential-decay"

	MinLambda = 1e-6
	MaxLambda = 1.0

	secondsPerDay = 86400.0
)

// DefaultCandidates spans minutes to weeks, in seconds
var DefaultCandidates = []float64{
	600,     // 10m
	3600,    // 1h
	21600,   // 6h
	86400,   // 1d
	172800,  // 2d
	345600,  // 4d
	604800,  // 7d
	1209600, // 14d
}

// Predict returns the retention probability for waiting intervalSec seconds.
// It is non-increasing in both intervalSec and lambda.
func Predict(lambda, sumSec, intervalSec float64, nNext int) float64 {
	if nNext <= 0 {
		nNext = 1
	}
	x := (sumSec + intervalSec/float64(nNext)) / secondsPerDay
	if x < 0 {
		x = 0
	}
	return clamp(math.Exp(-lambda*x), 0, 1)
}

// AccumulatedS sums t_i/n_i over past events. Events with no repetition count
// are treated as first repetitions.
func AccumulatedS(events []*model.ReviewOutcomeEvent) float64 {
	var s float64
	for _, ev := range events {
		n := ev.NReps
		if n <= 0 {
			n = 1
		}
		s += ev.TimeSinceLastReviewSec / float64(n)
	}
	return s
}

// Evaluate predicts retention for every candidate, keeping the input order
func Evaluate(lambda, sumSec float64, nNext int, candidates []float64) []model.CandidateInterval {
	results := make([]model.CandidateInterval, 0, len(candidates))
	for _, t := range candidates {
		results = append(results, model.CandidateInterval{
			IntervalSec:        t,
			PredictedRetention: Predict(lambda, sumSec, t, nNext),
		})
	}
	return results
}

// Choose picks the longest interval whose retention is at least target. When
// none reaches target, the candidate with the highest retention wins and ties
// go to the shorter interval. ok is false only for an empty list.
func Choose(candidates []model.CandidateInterval, target float64) (chosen model.CandidateInterval, ok bool) {
	if len(candidates) == 0 {
		return model.CandidateInterval{}, false
	}

	found := false
	for _, c := range candidates {
		if c.PredictedRetention < target {
			continue
		}
		if !found || c.IntervalSec > chosen.IntervalSec {
			chosen = c
			found = true
		}
	}
	if found {
		return chosen, true
	}

	chosen = candidates[0]
	for _, c := range candidates[1:] {
		if c.PredictedRetention > chosen.PredictedRetention ||
			(c.PredictedRetention == chosen.PredictedRetention && c.IntervalSec < chosen.IntervalSec) {
			chosen = c
		}
	}
	return chosen, true
}

// Recommend evaluates candidates with the exponential law and picks one. An
// empty candidate list falls back to DefaultCandidates.
func Recommend(lambda, sumSec float64, nNext int, candidates []float64, target float64) *model.Recommendation {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	evaluated := Evaluate(lambda, sumSec, nNext, candidates)
	chosen, _ := Choose(evaluated, target)

	return &model.Recommendation{
		RecommendedIntervalSec: chosen.IntervalSec,
		PredictedRetention:     chosen.PredictedRetention,
		LambdaUsed:             lambda,
		S:                      sumSec,
		Candidates:             evaluated,
		Source:                 model.SourceBaseline,
		Model:                  ModelName,
	}
}

// ValidCandidates returns the finite positive candidates in the supplied
// order. Duplicates are kept.
func ValidCandidates(candidates []float64) []float64 {
	out := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c > 0 && !math.IsInf(c, 0) && !math.IsNaN(c) {
			out = append(out, c)
		}
	}
	return out
}

// NonIncreasing lowers every retention to the minimum retention of any
// interval not longer than it, so retention never rises with the interval.
// The input order is kept.
func NonIncreasing(candidates []model.CandidateInterval) []model.CandidateInterval {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(candidates[a].IntervalSec, candidates[b].IntervalSec)
	})

	out := slices.Clone(candidates)
	floor := 1.0
	for _, i := range order {
		floor = math.Min(floor, candidates[i].PredictedRetention)
		out[i].PredictedRetention = floor
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
