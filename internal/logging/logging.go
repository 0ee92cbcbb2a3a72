package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below debug and carries per-event detail such as
// individual satellite rise and set times.
const LevelTrace = slog.Level(-8)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// Convenience helpers for common field types.
func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Float(key string, value float64) Field      { return Field{Key: key, Value: value} }
func Time(key string, value time.Time) Field     { return Field{Key: key, Value: value} }
func Duration(key string, v time.Duration) Field { return Field{Key: key, Value: v} }
func Any(key string, value any) Field            { return Field{Key: key, Value: value} }

// Err attaches an error under the "error" key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is a small structured logging interface that can be backed by slog or
// other structured loggers.
type Logger interface {
	Trace(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls basic logger behaviour.
type Config struct {
	Level     string    // trace, debug, info, warn, error
	Format    string    // json or text
	AddSource bool      // include source locations
	Output    io.Writer // console sink, stderr when nil

	// Dir enables per-level log files (trace.log, debug.log, info.log).
	// Each file receives only records of exactly its level.
	Dir        string
	MaxAgeDays int // retention of rotated files, 5 when zero
	MaxSizeMB  int // rotation size, 10 when zero

	// RotateEvery starts new files on a fixed period on top of the size
	// limit: one day when zero, never when negative.
	RotateEvery time.Duration
	Clock       clockwork.Clock // drives RotateEvery, the wall clock when nil
}

// New constructs a console Logger backed by slog with the provided config.
// Dir is ignored; use Open for file sinks.
func New(cfg Config) Logger {
	return &slogger{l: slog.New(consoleHandler(cfg))}
}

// Open constructs a Logger writing to the console and, when cfg.Dir is set,
// to rotating per-level files. The returned closer flushes the files.
func Open(cfg Config) (Logger, io.Closer, error) {
	if cfg.Dir == "" {
		return New(cfg), nopCloser{}, nil
	}
	console := consoleHandler(cfg)
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir %q: %w", cfg.Dir, err)
	}

	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 5
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}

	handlers := []slog.Handler{console}
	sinks := &fileSinks{}
	for _, lvl := range []struct {
		name  string
		level slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
	} {
		w := &lumberjack.Logger{
			Filename: filepath.Join(cfg.Dir, lvl.name+".log"),
			MaxSize:  maxSize,
			MaxAge:   maxAge,
		}
		sinks.files = append(sinks.files, w)
		h := slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:       LevelTrace,
			AddSource:   cfg.AddSource,
			ReplaceAttr: replaceLevelName,
		})
		handlers = append(handlers, &exactLevelHandler{level: lvl.level, next: h})
	}

	every := cfg.RotateEvery
	if every == 0 {
		every = 24 * time.Hour
	}
	if every > 0 {
		clock := cfg.Clock
		if clock == nil {
			clock = clockwork.NewRealClock()
		}
		sinks.rotateEvery(clock, every)
	}
	return &slogger{l: slog.New(fanoutHandler(handlers))}, sinks, nil
}

// Noop returns a logger that drops all logs.
func Noop() Logger { return noopLogger{} }

func consoleHandler(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceLevelName,
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(out, opts)
	default:
		return slog.NewTextHandler(out, opts)
	}
}

type slogger struct {
	l *slog.Logger
}

func (s *slogger) With(fields ...Field) Logger {
	return &slogger{l: s.l.With(toArgs(fields...)...)}
}

func (s *slogger) Trace(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, LevelTrace, msg, toAttrs(fields...)...)
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelDebug, msg, toAttrs(fields...)...)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelInfo, msg, toAttrs(fields...)...)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelWarn, msg, toAttrs(fields...)...)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelError, msg, toAttrs(fields...)...)
}

type noopLogger struct{}

func (noopLogger) With(fields ...Field) Logger             { return noopLogger{} }
func (noopLogger) Trace(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

func toAttrs(fields ...Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func toArgs(fields ...Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
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

// ValidLevel reports whether level names one of the supported levels.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// exactLevelHandler forwards only records of a single level.
type exactLevelHandler struct {
	level slog.Level
	next  slog.Handler
}

func (h *exactLevelHandler) Enabled(_ context.Context, l slog.Level) bool { return l == h.level }

func (h *exactLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *exactLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &exactLevelHandler{level: h.level, next: h.next.WithAttrs(attrs)}
}

func (h *exactLevelHandler) WithGroup(name string) slog.Handler {
	return &exactLevelHandler{level: h.level, next: h.next.WithGroup(name)}
}

type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// fileSinks owns the per-level files and the goroutine that rotates them
// on a period.
type fileSinks struct {
	files []*lumberjack.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	rotateErr error
}

func (s *fileSinks) rotateEvery(clock clockwork.Clock, every time.Duration) {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	ticker := clock.NewTicker(every)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.Chan():
				s.rotate()
			}
		}
	}()
}

func (s *fileSinks) rotate() {
	var errs []error
	for _, w := range s.files {
		if err := w.Rotate(); err != nil {
			errs = append(errs, fmt.Errorf("rotate %s: %w", w.Filename, err))
		}
	}
	if len(errs) > 0 {
		s.mu.Lock()
		s.rotateErr = errors.Join(append([]error{s.rotateErr}, errs...)...)
		s.mu.Unlock()
	}
}

// Close stops rotation and closes the files. Rotation failures seen since
// Open are reported here.
func (s *fileSinks) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
	})
	s.mu.Lock()
	errs := []error{s.rotateErr}
	s.rotateErr = nil
	s.mu.Unlock()
	for _, w := range s.files {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ---- Request-scoped helpers ----

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

// EnsureRequestID attaches a request_id to the context if absent and returns
// the updated context plus the ID.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := newRequestID()
	return ContextWithRequestID(ctx, id), id
}

// ContextWithRequestID stores request_id in context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts request_id from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestLogger ensures a request_id exists, and returns the updated
// context alongside a logger annotated with that ID under key.
func WithRequestLogger(ctx context.Context, base Logger, key string) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	ctx, id := EnsureRequestID(ctx)
	return ctx, base.With(String(key, id))
}

// ContextWithLogger stores a logger on the context.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	if l == nil {
		l = Noop()
	}
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFromContext fetches a logger from context if present; otherwise it
// returns nil.
func LoggerFromContext(ctx context.Context) Logger {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(loggerKey).(Logger); ok {
		return v
	}
	return nil
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}
