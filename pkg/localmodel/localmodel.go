// Package localmodel is an optional on-device recall model. It trains from
// locally logged outcomes and persists a single artifact under a fixed key.
// When no artifact exists or the storage backend cannot be used, every
// prediction reports ErrNoLocalModel and callers fall back to the remote
// predictor.
package localmodel

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultModelKey is the fixed store key of the artifact
const DefaultModelKey = "recall-model-v1"

var (
	ErrNoLocalModel     = goerr.New("no local model available")
	ErrUnavailable      = goerr.New("local model backend unavailable")
	ErrInsufficientData = goerr.New("insufficient training data")
)

// Store saves and loads artifacts as whole blobs
type Store interface {
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Pinger is implemented by stores that can tell up front whether they work
// in this runtime
type Pinger interface {
	Ping(ctx context.Context) error
}

// Capability is the cached result of probing the backend
type Capability int32

const (
	CapabilityUnknown Capability = iota
	CapabilityAvailable
	CapabilityUnavailable
)

func (c Capability) String() string {
	switch c {
	case CapabilityAvailable:
		return "available"
	case CapabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Adapter trains and queries the local model
type Adapter struct {
	store Store
	key   string
	cfg   TrainConfig
	now   func() time.Time

	probeOnce sync.Once
	state     atomic.Int32
	saveMu    sync.Mutex
}

// Option is a functional option for Adapter
type Option func(*Adapter)

// WithModelKey overrides DefaultModelKey
func WithModelKey(key string) Option {
	return func(a *Adapter) {
		a.key = key
	}
}

// WithTrainConfig sets the network shape and optimizer settings
func WithTrainConfig(cfg TrainConfig) Option {
	return func(a *Adapter) {
		a.cfg = cfg
	}
}

// WithClock sets the time source used to stamp artifacts
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// New creates an Adapter. A nil store yields an adapter that is permanently
// unavailable.
func New(store Store, opts ...Option) *Adapter {
	a := &Adapter{
		store: store,
		key:   DefaultModelKey,
		cfg:   DefaultTrainConfig(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Capability returns the probe result without triggering the probe
func (a *Adapter) Capability() Capability {
	return Capability(a.state.Load())
}

// probe checks the backend once and caches the result. The caller's
// cancellation is ignored because the result outlives the call.
func (a *Adapter) probe(ctx context.Context) Capability {
	a.probeOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)
		state := CapabilityAvailable
		if a.store == nil {
			state = CapabilityUnavailable
		} else if p, ok := a.store.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				logging.From(ctx).Warn("local model backend unavailable", "error", err)
				state = CapabilityUnavailable
			}
		}
		a.state.Store(int32(state))
	})
	return a.Capability()
}

// Train fits a new model and overwrites the stored artifact
func (a *Adapter) Train(ctx context.Context, samples []model.TrainingSample) (*Artifact, error) {
	if a.probe(ctx) != CapabilityAvailable {
		return nil, ErrUnavailable
	}

	art, err := fit(a.key, samples, a.cfg)
	if err != nil {
		return nil, err
	}
	art.TrainedAt = a.now()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	w, err := a.store.Put(ctx, a.key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact writer", goerr.V("key", a.key))
	}
	if err := art.encode(w); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to save artifact", goerr.V("key", a.key))
	}

	logging.From(ctx).Info("local model trained",
		"key", a.key,
		"samples", art.Samples,
		"loss", art.Loss)

	return art, nil
}

// Load reads the most recently saved artifact
func (a *Adapter) Load(ctx context.Context) (*Artifact, error) {
	if a.probe(ctx) != CapabilityAvailable {
		return nil, goerr.Wrap(ErrNoLocalModel, "backend unavailable")
	}

	r, err := a.store.Get(ctx, a.key)
	if err != nil {
		return nil, goerr.Wrap(ErrNoLocalModel, "artifact not readable",
			goerr.V("key", a.key),
			goerr.V("cause", err.Error()))
	}
	defer r.Close()

	art, err := decodeArtifact(r)
	if err != nil {
		return nil, goerr.Wrap(ErrNoLocalModel, "artifact not decodable",
			goerr.V("key", a.key),
			goerr.V("cause", err.Error()))
	}
	return art, nil
}

// Predict returns the recall probability for f using the saved artifact
func (a *Adapter) Predict(ctx context.Context, f model.Features) (float64, error) {
	ps, err := a.PredictBatch(ctx, []model.Features{f})
	if err != nil {
		return 0, err
	}
	return ps[0], nil
}

// PredictBatch loads the artifact once and scores every feature vector
func (a *Adapter) PredictBatch(ctx context.Context, fs []model.Features) ([]float64, error) {
	art, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(fs))
	for i, f := range fs {
		out[i] = art.Predict(f)
	}
	return out, nil
}
