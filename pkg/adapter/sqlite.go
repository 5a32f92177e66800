package adapter

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);`

// SQLite stores artifacts in a local SQLite database. go-sqlite3 needs cgo;
// in a build without it Ping fails and callers treat the store as absent.
type SQLite struct {
	db *sqlx.DB

	schemaOnce sync.Once
	schemaErr  error
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens (lazily) the database file at path
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	return &SQLite{db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping connects and creates the schema on first use. The outcome is cached,
// so the caller's cancellation does not apply to it.
func (s *SQLite) Ping(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)
		if err := s.db.PingContext(ctx); err != nil {
			s.schemaErr = goerr.Wrap(err, "failed to connect sqlite")
			return
		}
		if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
			s.schemaErr = goerr.Wrap(err, "failed to create sqlite schema")
		}
	})
	return s.schemaErr
}

type sqliteWriter struct {
	bytes.Buffer
	ctx    context.Context
	store  *SQLite
	key    string
	closed bool
}

func (w *sqliteWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.store.save(w.ctx, w.key, w.Bytes())
}

func (s *SQLite) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return &sqliteWriter{ctx: ctx, store: s, key: key}, nil
}

func (s *SQLite) save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to save artifact", goerr.V("key", key))
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}

	var data []byte
	if err := s.db.GetContext(ctx, &data, `SELECT data FROM artifacts WHERE key = ?`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrObjectNotFound, "artifact does not exist", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to load artifact", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
