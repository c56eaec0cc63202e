// Package logger provides structured logging setup for the runner.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/agent0/runner/internal/config"
)

// Async handler sizing.
const (
	asyncBufferSize = 4096
	asyncWorkers    = 2
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and
// the request and run ids taken from the record's context. When cfg.Async
// is set, records are written by background workers and the returned
// Closer must be called on shutdown to flush them.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	handler = &contextHandler{inner: handler}

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncBufferSize, asyncWorkers)
		handler, closer = ah, ah
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// contextHandler copies request-scoped ids from the context onto the record.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := RequestID(ctx); id != "" {
		rec.AddAttrs(slog.String("request_id", id))
	}
	if id := RunID(ctx); id != "" {
		rec.AddAttrs(slog.String("run_id", id))
	}
	return h.inner.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
