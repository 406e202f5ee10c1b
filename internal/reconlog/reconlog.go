// Package reconlog is the pipeline's structured progress log: a per-stage
// human message plus timing and size fields, written through log/slog and
// mirrored to a gzip-compressed audit file (spec §4.9, §9).
//
// The handler itself is grounded on rcornwell/S370's util/logger.LogHandler:
// a mutex-guarded slog.Handler wrapping a text handler, writing to both a
// persisted file and stderr.
package reconlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Handler is a slog.Handler that serializes records as single lines and
// fans them out to a gzip-compressed audit writer and (optionally) stderr.
type Handler struct {
	mu     *sync.Mutex
	h      slog.Handler
	audit  io.Writer
	stderr bool
}

// NewHandler returns a Handler writing JSON-free text lines to audit (already
// gzip-wrapped by the caller) and, if toStderr, also to os.Stderr.
func NewHandler(audit io.Writer, toStderr bool) *Handler {
	return &Handler{
		mu:     &sync.Mutex{},
		h:      slog.NewTextHandler(audit, &slog.HandlerOptions{Level: slog.LevelDebug}),
		audit:  audit,
		stderr: toStderr,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{mu: h.mu, h: h.h.WithAttrs(attrs), audit: h.audit, stderr: h.stderr}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{mu: h.mu, h: h.h.WithGroup(name), audit: h.audit, stderr: h.stderr}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("2006-01-02T15:04:05.000Z07:00"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})
	line := strings.Join(parts, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.audit != nil {
		_, err = h.audit.Write([]byte(line))
	}
	if h.stderr {
		_, _ = os.Stderr.Write([]byte(line))
	}
	return err
}

// Logger wraps slog.Logger with the stage/timing/size fields the
// orchestrator needs (spec §4.9 "human strings plus per-stage timings and
// sizes").
type Logger struct {
	*slog.Logger
	gz *gzip.Writer
}

// Open creates a Logger whose audit trail is gzip-compressed at auditPath.
// Closing the returned Logger flushes and closes the gzip stream.
func Open(auditPath string, toStderr bool) (*Logger, error) {
	f, err := os.Create(auditPath)
	if err != nil {
		return nil, err
	}
	gz := gzip.NewWriter(f)
	h := NewHandler(gz, toStderr)
	return &Logger{Logger: slog.New(h), gz: gz}, nil
}

// Close flushes and closes the gzip audit stream.
func (l *Logger) Close() error {
	if l.gz == nil {
		return nil
	}
	return l.gz.Close()
}

// Stage logs one pipeline stage's completion with its elapsed time and an
// approximate output size (bytes, voxel count, triangle count, ...), per
// the orchestrator's per-stage timings-and-sizes requirement.
func (l *Logger) Stage(name string, elapsed time.Duration, size int64, msg string) {
	l.Info(msg, slog.String("stage", name), slog.Duration("elapsed", elapsed), slog.Int64("size", size))
}

// Warn logs a non-fatal quality warning or stage-recoverable fallback.
func (l *Logger) Warn(stage, kind, msg string) {
	l.Logger.Warn(msg, slog.String("stage", stage), slog.String("kind", kind))
}
