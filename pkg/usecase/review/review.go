// Package review implements the adaptive review flow: which variant a
// learner sees, when the item should come back, and how each answer feeds
// the learner's forgetting rate.
package review

import (
	"context"
	"sync"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/eduardo5010/study-cycle/pkg/localmodel"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/policy"
	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/eduardo5010/study-cycle/pkg/retention"
	"github.com/eduardo5010/study-cycle/pkg/usecase/generate"
)

// historyWindow is how many recent reviews of an item contribute to S
const historyWindow = 10

// Generator produces fallback variants. *generate.UseCase implements it.
type Generator interface {
	Generate(ctx context.Context, itemID model.StudyItemID, source string) *generate.Result
}

// UseCase provides review scheduling operations
type UseCase struct {
	repo      repository.Repository
	policy    policy.Policy
	generator Generator
	predictor adapter.Predictor
	local     *localmodel.Adapter
	warehouse adapter.BigQuery

	target        float64
	candidates    []float64
	defaultLambda float64
	online        retention.UpdateConfig
	window        retention.WindowConfig
	now           func() time.Time

	// serializes read-modify-write of learner profiles
	profileMu sync.Mutex
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithGenerator sets the fallback content generator
func WithGenerator(g Generator) Option {
	return func(uc *UseCase) {
		uc.generator = g
	}
}

// WithPredictor sets the remote prediction and telemetry service
func WithPredictor(p adapter.Predictor) Option {
	return func(uc *UseCase) {
		uc.predictor = p
	}
}

// WithLocalModel enables the on-device model
func WithLocalModel(a *localmodel.Adapter) Option {
	return func(uc *UseCase) {
		uc.local = a
	}
}

// WithWarehouse streams outcomes to BigQuery and trains from it
func WithWarehouse(bq adapter.BigQuery) Option {
	return func(uc *UseCase) {
		uc.warehouse = bq
	}
}

// WithTarget sets the minimum acceptable predicted retention
func WithTarget(target float64) Option {
	return func(uc *UseCase) {
		uc.target = target
	}
}

// WithCandidates replaces the default interval ladder
func WithCandidates(candidates []float64) Option {
	return func(uc *UseCase) {
		if c := retention.ValidCandidates(candidates); len(c) > 0 {
			uc.candidates = c
		}
	}
}

// WithDefaultLambda sets the decay rate of learners without a profile
func WithDefaultLambda(lambda float64) Option {
	return func(uc *UseCase) {
		uc.defaultLambda = lambda
	}
}

// WithOnlineConfig sets the per-outcome λ update parameters
func WithOnlineConfig(cfg retention.UpdateConfig) Option {
	return func(uc *UseCase) {
		uc.online = cfg
	}
}

// WithWindowConfig sets the windowed λ adjustment parameters
func WithWindowConfig(cfg retention.WindowConfig) Option {
	return func(uc *UseCase) {
		uc.window = cfg
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a review UseCase. A nil policy selects human-first.
func New(repo repository.Repository, p policy.Policy, opts ...Option) *UseCase {
	if p == nil {
		p = policy.HumanFirst()
	}
	uc := &UseCase{
		repo:          repo,
		policy:        p,
		target:        retention.DefaultTarget,
		candidates:    retention.DefaultCandidates,
		defaultLambda: model.DefaultLambda,
		online:        retention.DefaultOnlineConfig(),
		window:        retention.DefaultWindowConfig(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Target returns the retention threshold in use
func (uc *UseCase) Target() float64 {
	return uc.target
}
