package retention

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrNoEvents = goerr.New("no outcome events to adjust lambda from")
)

// UpdateConfig bounds and paces λ updates
type UpdateConfig struct {
	LearningRate float64
	MinLambda    float64
	MaxLambda    float64
}

// DefaultOnlineConfig is used for the per-outcome gradient step
func DefaultOnlineConfig() UpdateConfig {
	return UpdateConfig{
		LearningRate: 0.05,
		MinLambda:    MinLambda,
		MaxLambda:    MaxLambda,
	}
}

// OnlineUpdate applies one gradient step on the squared error (R - y)² for
// an observed outcome y in [0,1] after waiting intervalSec seconds.
//
//	x  = (S + t/n) in days
//	R  = exp(-λx)
//	∂/∂λ (R - y)² = -2 (R - y) · x · R
//	λ' = clamp(λ - lr · ∂, min, max)
//
// A forgotten item (R > y) raises λ; a recalled one lowers it.
func OnlineUpdate(lambda, sumSec, intervalSec float64, n int, y float64, cfg UpdateConfig) float64 {
	if n <= 0 {
		n = 1
	}
	x := (sumSec + intervalSec/float64(n)) / secondsPerDay
	r := math.Exp(-lambda * x)
	grad := -2 * (r - y) * x * r
	return clamp(lambda-cfg.LearningRate*grad, cfg.MinLambda, cfg.MaxLambda)
}

// WindowConfig configures the windowed adjustment heuristic
type WindowConfig struct {
	Window       int
	LearningRate float64
	Target       float64
	MinLambda    float64
	MaxLambda    float64
}

// DefaultWindowConfig returns window 50, lr 0.2 and target accuracy 0.8
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Window:       50,
		LearningRate: 0.2,
		Target:       0.8,
		MinLambda:    MinLambda,
		MaxLambda:    MaxLambda,
	}
}

// AdjustWindow scales λ by exp(lr · (target - mean)) where mean is the average
// correctness of the most recent cfg.Window outcomes. Accuracy under target
// speeds forgetting up, accuracy above target slows it down.
func AdjustWindow(lambda float64, correctness []int, cfg WindowConfig) (float64, error) {
	if len(correctness) == 0 {
		return 0, ErrNoEvents
	}
	if cfg.Window > 0 && len(correctness) > cfg.Window {
		correctness = correctness[len(correctness)-cfg.Window:]
	}

	var sum float64
	for _, c := range correctness {
		sum += float64(c)
	}
	mean := sum / float64(len(correctness))

	factor := math.Exp(cfg.LearningRate * (cfg.Target - mean))
	return clamp(lambda*factor, cfg.MinLambda, cfg.MaxLambda), nil
}
