package cli

import (
	"os"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/retention"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// schedulerFile is the YAML scheduling configuration. Absent keys keep the
// built-in defaults.
type schedulerFile struct {
	TargetRetention    *float64  `yaml:"target_retention"`
	DefaultLambda      *float64  `yaml:"default_lambda"`
	CandidateIntervals []float64 `yaml:"candidate_intervals"`
	LearningRate       *float64  `yaml:"learning_rate"`
	MinLambda          *float64  `yaml:"min_lambda"`
	MaxLambda          *float64  `yaml:"max_lambda"`
	Window             *int      `yaml:"window"`
	WindowLearningRate *float64  `yaml:"window_learning_rate"`
	WindowTarget       *float64  `yaml:"window_target"`
	RetrainSchedule    string    `yaml:"retrain_schedule"`
}

func readSchedulerFile(path string) (*schedulerFile, error) {
	var f schedulerFile
	if path == "" {
		return &f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read scheduler config", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse scheduler config", goerr.V("path", path))
	}
	if err := f.validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid scheduler config", goerr.V("path", path))
	}
	return &f, nil
}

func (f *schedulerFile) validate() error {
	if f.TargetRetention != nil && (*f.TargetRetention <= 0 || *f.TargetRetention > 1) {
		return goerr.New("target_retention must be in (0, 1]", goerr.V("target_retention", *f.TargetRetention))
	}
	if f.DefaultLambda != nil {
		if err := model.ValidateLambda(*f.DefaultLambda); err != nil {
			return err
		}
	}
	for name, bound := range map[string]*float64{"min_lambda": f.MinLambda, "max_lambda": f.MaxLambda} {
		if bound == nil {
			continue
		}
		if err := model.ValidateLambda(*bound); err != nil {
			return goerr.Wrap(err, "lambda bound out of range", goerr.V("key", name))
		}
	}
	if f.MinLambda != nil && f.MaxLambda != nil && *f.MinLambda > *f.MaxLambda {
		return goerr.New("min_lambda exceeds max_lambda",
			goerr.V("min_lambda", *f.MinLambda),
			goerr.V("max_lambda", *f.MaxLambda))
	}
	for _, c := range f.CandidateIntervals {
		if c <= 0 {
			return goerr.New("candidate_intervals must be positive", goerr.V("interval", c))
		}
	}
	return nil
}

// options converts the file into review options
func (f *schedulerFile) options() []review.Option {
	var opts []review.Option

	if f.TargetRetention != nil {
		opts = append(opts, review.WithTarget(*f.TargetRetention))
	}
	if f.DefaultLambda != nil {
		opts = append(opts, review.WithDefaultLambda(*f.DefaultLambda))
	}
	if len(f.CandidateIntervals) > 0 {
		opts = append(opts, review.WithCandidates(f.CandidateIntervals))
	}

	online := retention.DefaultOnlineConfig()
	window := retention.DefaultWindowConfig()
	if f.LearningRate != nil {
		online.LearningRate = *f.LearningRate
	}
	if f.MinLambda != nil {
		online.MinLambda = *f.MinLambda
		window.MinLambda = *f.MinLambda
	}
	if f.MaxLambda != nil {
		online.MaxLambda = *f.MaxLambda
		window.MaxLambda = *f.MaxLambda
	}
	if f.Window != nil {
		window.Window = *f.Window
	}
	if f.WindowLearningRate != nil {
		window.LearningRate = *f.WindowLearningRate
	}
	if f.WindowTarget != nil {
		window.Target = *f.WindowTarget
	}

	return append(opts, review.WithOnlineConfig(online), review.WithWindowConfig(window))
}

func loadSchedulerOptions(path string) ([]review.Option, error) {
	f, err := readSchedulerFile(path)
	if err != nil {
		return nil, err
	}
	return f.options(), nil
}
