package adapter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func testStorage(t *testing.T, store adapter.Storage) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing-key")
	gt.True(t, errors.Is(err, adapter.ErrObjectNotFound))

	for _, body := range []string{`{"v":1}`, `{"v":2}`} {
		w, err := store.Put(ctx, "model")
		gt.NoError(t, err)
		_, err = io.WriteString(w, body)
		gt.NoError(t, err)
		gt.NoError(t, w.Close())
	}

	r, err := store.Get(ctx, "model")
	gt.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(data), `{"v":2}`)
}

func TestMemoryStorage(t *testing.T) {
	store := adapter.NewMemoryStorage()
	gt.NoError(t, store.Ping(context.Background()))
	testStorage(t, store)
}

func TestSQLiteStorage(t *testing.T) {
	store, err := adapter.NewSQLite(filepath.Join(t.TempDir(), "artifacts.db"))
	gt.NoError(t, err)
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Skip("sqlite backend not usable in this build:", err)
	}
	testStorage(t, store)
}

func TestSQLitePingIgnoresCallerCancel(t *testing.T) {
	dir := t.TempDir()
	check, err := adapter.NewSQLite(filepath.Join(dir, "check.db"))
	gt.NoError(t, err)
	defer check.Close()
	if err := check.Ping(context.Background()); err != nil {
		t.Skip("sqlite backend not usable in this build:", err)
	}

	store, err := adapter.NewSQLite(filepath.Join(dir, "artifacts.db"))
	gt.NoError(t, err)
	defer store.Close()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	gt.NoError(t, store.Ping(canceled))

	// the cached result stays usable for later callers
	testStorage(t, store)
}

func TestCloudStorage(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET is not set")
	}

	ctx := context.Background()
	store, err := adapter.NewStorage(ctx, bucket, adapter.WithPrefix("study-cycle-test/"))
	gt.NoError(t, err)
	gt.NoError(t, store.Ping(ctx))
	testStorage(t, store)
}
