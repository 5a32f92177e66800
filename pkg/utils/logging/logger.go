package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

// Output formats accepted by NewWithFormat
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type contextKey struct{}

var (
	loggerKey       = contextKey{}
	defaultLogger   *slog.Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New("info", os.Stderr)
}

// parseLevel converts a string level to slog.Level. Unknown levels fall back
// to info with a warning.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		Default().Warn("invalid log level", "level", level)
		return slog.LevelInfo
	}
}

// New creates a colored console logger. Level is one of debug, info, warn
// (or warning) and error, case-insensitive.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(parseLevel(level)),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)

	return slog.New(handler)
}

// NewJSON creates a logger writing one JSON object per record, for long
// running processes whose output is collected by a log pipeline. goerr
// errors are written as an object with their message and values.
func NewJSON(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: expandGoerr,
	}))
}

// NewWithFormat picks the handler by format name. Unknown formats fall back
// to the console handler with a warning.
func NewWithFormat(format, level string, w io.Writer) *slog.Logger {
	switch strings.ToLower(format) {
	case FormatJSON:
		return NewJSON(level, w)
	case FormatConsole, "":
		return New(level, w)
	default:
		logger := New(level, w)
		logger.Warn("invalid log format, using console", "format", format)
		return logger
	}
}

// expandGoerr turns a goerr error attribute into a group carrying the message
// and the values attached with goerr.V
func expandGoerr(_ []string, attr slog.Attr) slog.Attr {
	err, ok := attr.Value.Any().(error)
	if !ok {
		return attr
	}

	var ge *goerr.Error
	if !errors.As(err, &ge) {
		return slog.String(attr.Key, err.Error())
	}

	attrs := []any{slog.String("message", err.Error())}
	if values := ge.Values(); len(values) > 0 {
		fields := make([]any, 0, len(values))
		for k, v := range values {
			fields = append(fields, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("values", fields...))
	}
	return slog.Group(attr.Key, attrs...)
}

// Default returns the process-wide logger
func Default() *slog.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *slog.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// With returns a new context carrying logger
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From retrieves the logger from ctx, or the default logger when none is set
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return Default()
}
