package localmodel

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const artifactVersion = 1

// Artifact is the persisted form of a trained model. It is written and read
// whole; there is no partial update.
type Artifact struct {
	Name      string                      `json:"name"`
	Version   int                         `json:"version"`
	Sizes     []int                       `json:"sizes"`
	Weights   [][]float64                 `json:"weights"`
	Biases    [][]float64                 `json:"biases"`
	Mean      [model.FeatureCount]float64 `json:"mean"`
	Std       [model.FeatureCount]float64 `json:"std"`
	Samples   int                         `json:"samples"`
	Loss      float64                     `json:"loss"`
	TrainedAt time.Time                   `json:"trained_at"`

	net *network
}

func newArtifact(name string, net *network, mean, std [model.FeatureCount]float64) *Artifact {
	a := &Artifact{
		Name:    name,
		Version: artifactVersion,
		Sizes:   []int{net.layers[0].In},
		Mean:    mean,
		Std:     std,
		net:     net,
	}
	for _, ly := range net.layers {
		a.Sizes = append(a.Sizes, ly.Out)
		a.Weights = append(a.Weights, ly.W)
		a.Biases = append(a.Biases, ly.B)
	}
	return a
}

// decodeArtifact reads an artifact and rebuilds its network
func decodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, goerr.Wrap(err, "failed to decode model artifact")
	}
	if a.Version != artifactVersion {
		return nil, goerr.New("unsupported artifact version", goerr.V("version", a.Version))
	}
	if len(a.Sizes) < 2 || a.Sizes[0] != model.FeatureCount || a.Sizes[len(a.Sizes)-1] != 1 {
		return nil, goerr.New("invalid artifact layer sizes", goerr.V("sizes", a.Sizes))
	}
	if len(a.Weights) != len(a.Sizes)-1 || len(a.Biases) != len(a.Sizes)-1 {
		return nil, goerr.New("artifact layer count mismatch", goerr.V("sizes", a.Sizes))
	}

	net := &network{}
	for l := 0; l < len(a.Sizes)-1; l++ {
		in, out := a.Sizes[l], a.Sizes[l+1]
		if len(a.Weights[l]) != in*out || len(a.Biases[l]) != out {
			return nil, goerr.New("artifact weight shape mismatch", goerr.V("layer", l))
		}
		net.layers = append(net.layers, &layer{In: in, Out: out, W: a.Weights[l], B: a.Biases[l]})
	}
	a.net = net

	return &a, nil
}

func (a *Artifact) encode(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(a); err != nil {
		return goerr.Wrap(err, "failed to encode model artifact")
	}
	return nil
}

// Predict returns the recall probability for one feature vector
func (a *Artifact) Predict(f model.Features) float64 {
	return a.net.predict(a.normalize(f.Vector()))
}

func (a *Artifact) normalize(v [model.FeatureCount]float64) []float64 {
	x := make([]float64, model.FeatureCount)
	for i, raw := range v {
		x[i] = (transform(raw) - a.Mean[i]) / a.Std[i]
	}
	return x
}

// transform compresses the heavy-tailed second counts
func transform(v float64) float64 {
	return math.Log1p(math.Max(0, v))
}
