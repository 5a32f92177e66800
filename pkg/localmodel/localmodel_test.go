package localmodel_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/localmodel"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	pingErr  error
	pingCall int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

type bufferWriter struct {
	bytes.Buffer
	onClose func([]byte)
}

func (w *bufferWriter) Close() error {
	w.onClose(w.Bytes())
	return nil
}

func (s *mockStore) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &bufferWriter{onClose: func(b []byte) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.data[key] = bytes.Clone(b)
	}}, nil
}

func (s *mockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	if !ok {
		return nil, goerr.New("not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *mockStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingCall++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.pingErr
}

const day = 86400.0

// separableSamples recalls items reviewed within hours and forgets items left
// for a month
func separableSamples() []model.TrainingSample {
	var samples []model.TrainingSample
	for i := 0; i < 20; i++ {
		jitter := float64(i%5) * 600
		samples = append(samples,
			model.TrainingSample{
				Features: model.Features{
					NPrev:           float64(1 + i%3),
					AvgPrevInterval: day,
					LastInterval:    day,
					TimeSincePrev:   3600 + jitter,
				},
				Label: 1,
			},
			model.TrainingSample{
				Features: model.Features{
					NPrev:           float64(1 + i%3),
					AvgPrevInterval: day,
					LastInterval:    day,
					TimeSincePrev:   30*day + jitter,
				},
				Label: 0,
			},
		)
	}
	return samples
}

func TestTrainAndPredict(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	adapter := localmodel.New(store, localmodel.WithClock(func() time.Time { return fixed }))

	art, err := adapter.Train(ctx, separableSamples())
	gt.NoError(t, err)
	gt.Equal(t, art.Name, localmodel.DefaultModelKey)
	gt.Equal(t, art.Samples, 40)
	gt.Equal(t, art.TrainedAt, fixed)
	gt.Equal(t, adapter.Capability(), localmodel.CapabilityAvailable)

	_, saved := store.data[localmodel.DefaultModelKey]
	gt.True(t, saved)

	recalled, err := adapter.Predict(ctx, model.Features{NPrev: 2, AvgPrevInterval: day, LastInterval: day, TimeSincePrev: 4000})
	gt.NoError(t, err)
	gt.True(t, recalled > 0.5).Describe("short gap should predict recall")

	forgotten, err := adapter.Predict(ctx, model.Features{NPrev: 2, AvgPrevInterval: day, LastInterval: day, TimeSincePrev: 30 * day})
	gt.NoError(t, err)
	gt.True(t, forgotten < 0.5).Describe("month-long gap should predict forgetting")

	ps, err := adapter.PredictBatch(ctx, []model.Features{
		{NPrev: 1, AvgPrevInterval: day, LastInterval: day, TimeSincePrev: 3600},
		{NPrev: 1, AvgPrevInterval: day, LastInterval: day, TimeSincePrev: 30 * day},
	})
	gt.NoError(t, err)
	gt.A(t, ps).Length(2)
	for _, p := range ps {
		gt.True(t, p >= 0 && p <= 1)
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := model.Features{NPrev: 1, AvgPrevInterval: day, LastInterval: day, TimeSincePrev: 5 * day}

	var results []float64
	for i := 0; i < 2; i++ {
		adapter := localmodel.New(newMockStore())
		_, err := adapter.Train(ctx, separableSamples())
		gt.NoError(t, err)
		p, err := adapter.Predict(ctx, f)
		gt.NoError(t, err)
		results = append(results, p)
	}
	gt.Equal(t, results[0], results[1])
}

func TestPredictWithoutArtifact(t *testing.T) {
	adapter := localmodel.New(newMockStore())
	_, err := adapter.Predict(context.Background(), model.Features{})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, localmodel.ErrNoLocalModel))
}

func TestPredictWithCorruptArtifact(t *testing.T) {
	store := newMockStore()
	store.data[localmodel.DefaultModelKey] = []byte(`{"version": 1, "sizes": [4, 1]`)

	adapter := localmodel.New(store)
	_, err := adapter.Predict(context.Background(), model.Features{})
	gt.True(t, errors.Is(err, localmodel.ErrNoLocalModel))
}

func TestUnavailableBackendIsProbedOnce(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.pingErr = errors.New("sqlite3 requires cgo")

	adapter := localmodel.New(store)
	gt.Equal(t, adapter.Capability(), localmodel.CapabilityUnknown)

	for i := 0; i < 3; i++ {
		_, err := adapter.Predict(ctx, model.Features{})
		gt.True(t, errors.Is(err, localmodel.ErrNoLocalModel))
	}

	_, err := adapter.Train(ctx, separableSamples())
	gt.True(t, errors.Is(err, localmodel.ErrUnavailable))

	gt.Equal(t, store.pingCall, 1)
	gt.Equal(t, adapter.Capability(), localmodel.CapabilityUnavailable)
}

func TestProbeIgnoresCallerCancel(t *testing.T) {
	store := newMockStore()
	adapter := localmodel.New(store)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Predict(canceled, model.Features{})
	gt.True(t, errors.Is(err, localmodel.ErrNoLocalModel))
	gt.Equal(t, adapter.Capability(), localmodel.CapabilityAvailable)

	_, err = adapter.Train(context.Background(), separableSamples())
	gt.NoError(t, err)
	gt.Equal(t, store.pingCall, 1)
}

func TestNilStoreIsUnavailable(t *testing.T) {
	adapter := localmodel.New(nil)
	_, err := adapter.Predict(context.Background(), model.Features{})
	gt.True(t, errors.Is(err, localmodel.ErrNoLocalModel))
	gt.Equal(t, adapter.Capability().String(), "unavailable")
}

func TestTrainRejectsInsufficientData(t *testing.T) {
	ctx := context.Background()
	adapter := localmodel.New(newMockStore())

	t.Run("single sample", func(t *testing.T) {
		_, err := adapter.Train(ctx, separableSamples()[:1])
		gt.True(t, errors.Is(err, localmodel.ErrInsufficientData))
	})

	t.Run("single class", func(t *testing.T) {
		samples := []model.TrainingSample{
			{Features: model.Features{TimeSincePrev: 10}, Label: 1},
			{Features: model.Features{TimeSincePrev: 20}, Label: 1},
		}
		_, err := adapter.Train(ctx, samples)
		gt.True(t, errors.Is(err, localmodel.ErrInsufficientData))
	})
}

func TestTrainOverwritesArtifact(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	adapter := localmodel.New(store, localmodel.WithModelKey("test-model"))

	_, err := adapter.Train(ctx, separableSamples())
	gt.NoError(t, err)
	first := bytes.Clone(store.data["test-model"])

	cfg := localmodel.DefaultTrainConfig()
	cfg.Seed = 7
	other := localmodel.New(store, localmodel.WithModelKey("test-model"), localmodel.WithTrainConfig(cfg))
	_, err = other.Train(ctx, separableSamples())
	gt.NoError(t, err)

	gt.Equal(t, len(store.data), 1)
	gt.False(t, bytes.Equal(first, store.data["test-model"]))
}
