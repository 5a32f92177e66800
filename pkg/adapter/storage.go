package adapter

import (
	"bytes"
	"context"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrObjectNotFound = goerr.New("object not found")
)

// Storage is the interface for whole-blob artifact storage
type Storage interface {
	// Put returns a writer; the object is committed when the writer is closed
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens an object for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Ping checks that the backend is usable in this runtime
	Ping(ctx context.Context) error
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// StorageOption is a functional option for the Cloud Storage client
type StorageOption func(*storageClient)

// WithPrefix stores every object under the given key prefix
func WithPrefix(prefix string) StorageOption {
	return func(s *storageClient) {
		s.prefix = prefix
	}
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string, opts ...StorageOption) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &storageClient{
		bucketName: bucketName,
		client:     client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.prefix + key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.prefix + key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.Value("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

func (s *storageClient) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucketName).Attrs(ctx); err != nil {
		return goerr.Wrap(err, "failed to access bucket", goerr.Value("bucket", s.bucketName))
	}
	return nil
}

// MemoryStorage keeps objects in process memory. Objects are replaced whole
// on writer close.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

type memoryWriter struct {
	bytes.Buffer
	commit func([]byte)
	closed bool
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.commit(bytes.Clone(w.Bytes()))
	return nil
}

func (m *MemoryStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &memoryWriter{commit: func(b []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[key] = b
	}}, nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.objects[key]
	if !ok {
		return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.Value("key", key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
