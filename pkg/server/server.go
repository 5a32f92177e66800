// Package server exposes the prediction and telemetry endpoints consumed by
// adapter.Predictor, backed by the review use case.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Server is the HTTP handler of the baseline prediction service
type Server struct {
	review *review.UseCase
	repo   repository.Repository
	token  string
	logger *slog.Logger
	mcp    http.Handler
	mux    *http.ServeMux
}

// Option is a functional option for Server
type Option func(*Server)

// WithBearerToken requires the token on every /api request
func WithBearerToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithLogger sets the logger attached to request contexts
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMCP mounts an MCP handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// New creates a Server
func New(uc *review.UseCase, repo repository.Repository, opts ...Option) *Server {
	s := &Server{
		review: uc,
		repo:   repo,
		logger: logging.Default(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.Handle("POST /api/ml/events", s.auth(http.HandlerFunc(s.handlePostEvent)))
	s.mux.Handle("GET /api/ml/events", s.auth(http.HandlerFunc(s.handleListEvents)))
	s.mux.Handle("POST /api/ml/predict", s.auth(http.HandlerFunc(s.handlePredict)))
	s.mux.Handle("GET /api/ml/lambda/{userId}", s.auth(http.HandlerFunc(s.handleGetLambda)))
	s.mux.Handle("POST /api/ml/lambda/{userId}", s.auth(http.HandlerFunc(s.handlePutLambda)))
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.mcp != nil {
		s.mux.Handle("/mcp", s.auth(s.mcp))
	}

	return s
}

// ServeHTTP attaches the logger to the request and dispatches it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx := logging.With(r.Context(), s.logger)
	rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	s.mux.ServeHTTP(rw, r.WithContext(ctx))

	s.logger.Debug("request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rw.status,
		"duration", time.Since(started))
}

func (s *Server) auth(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	expected := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// badRequest reports the first line of err to the client
func badRequest(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	writeError(w, http.StatusBadRequest, msg)
}
