package localmodel

import (
	"math"
	"math/rand/v2"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// TrainConfig controls the network shape and the optimizer
type TrainConfig struct {
	Hidden       []int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
}

// DefaultTrainConfig returns a 4-16-8-1 network trained for 200 epochs
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Hidden:       []int{16, 8},
		Epochs:       200,
		BatchSize:    16,
		LearningRate: 0.01,
		Seed:         1,
	}
}

// fit trains a fresh network on samples. It needs at least two samples and
// both outcome classes.
func fit(name string, samples []model.TrainingSample, cfg TrainConfig) (*Artifact, error) {
	if len(samples) < 2 {
		return nil, goerr.Wrap(ErrInsufficientData, "too few samples", goerr.V("samples", len(samples)))
	}
	var pos, neg int
	for _, s := range samples {
		if s.Label < 0 || s.Label > 1 || math.IsNaN(s.Label) {
			return nil, goerr.New("label out of range", goerr.V("label", s.Label))
		}
		if s.Label >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, goerr.Wrap(ErrInsufficientData, "samples contain a single class",
			goerr.V("positive", pos),
			goerr.V("negative", neg))
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = len(samples)
	}

	mean, std := featureStats(samples)
	xs := make([][]float64, len(samples))
	for i, s := range samples {
		x := make([]float64, model.FeatureCount)
		for j, raw := range s.Vector() {
			x[j] = (transform(raw) - mean[j]) / std[j]
		}
		xs[i] = x
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	sizes := append([]int{model.FeatureCount}, cfg.Hidden...)
	sizes = append(sizes, 1)
	net := newNetwork(sizes, rng)

	params := net.params()
	opt := newAdam(cfg.LearningRate, params)
	grads := make([][]float64, len(params))
	for i, p := range params {
		grads[i] = make([]float64, len(p))
	}
	gW, gB := splitGrads(grads)

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	var epochLoss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		epochLoss = 0

		for start := 0; start < len(order); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(order))
			for _, g := range grads {
				clear(g)
			}
			for _, idx := range order[start:end] {
				epochLoss += net.backward(xs[idx], samples[idx].Label, gW, gB)
			}
			scale := 1 / float64(end-start)
			for _, g := range grads {
				for i := range g {
					g[i] *= scale
				}
			}
			opt.update(params, grads)
		}
	}

	art := newArtifact(name, net, mean, std)
	art.Samples = len(samples)
	art.Loss = epochLoss / float64(len(samples))
	return art, nil
}

// splitGrads views the flat W0, B0, W1, B1 list as per-layer W and B lists
func splitGrads(grads [][]float64) (gW, gB [][]float64) {
	for i := 0; i < len(grads); i += 2 {
		gW = append(gW, grads[i])
		gB = append(gB, grads[i+1])
	}
	return gW, gB
}

// featureStats returns the mean and standard deviation of the transformed
// features. A constant feature gets std 1.
func featureStats(samples []model.TrainingSample) (mean, std [model.FeatureCount]float64) {
	n := float64(len(samples))
	for _, s := range samples {
		for j, raw := range s.Vector() {
			mean[j] += transform(raw)
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, s := range samples {
		for j, raw := range s.Vector() {
			d := transform(raw) - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] < 1e-9 {
			std[j] = 1
		}
	}
	return mean, std
}
