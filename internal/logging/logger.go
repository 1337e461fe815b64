// Package logging provides structured logging with secret redaction for the
// mirror authentication client and service.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry.
type LogLevel string

// Log severity levels.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for log entries.
type LogFormat string

// Log output formats.
const (
	// FormatJSON outputs one JSON object per line (default).
	FormatJSON LogFormat = "json"
	// FormatHuman outputs key=value lines.
	FormatHuman LogFormat = "human"
)

// ParseLevel converts a level name, defaulting to info for unknown input.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat converts a format name, defaulting to JSON for unknown input.
func ParseFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human", "text":
		return FormatHuman
	default:
		return FormatJSON
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger provides structured logging with secret redaction.
// Error entries go to stderr, everything else to stdout.
type Logger struct {
	level    LogLevel
	format   LogFormat
	redactor *Redactor

	mu  sync.RWMutex
	out *slog.Logger
	err *slog.Logger
}

// New creates a new Logger instance.
func New(level LogLevel, format LogFormat) *Logger {
	l := &Logger{
		level:    level,
		format:   format,
		redactor: NewRedactor(),
	}
	l.SetOutput(os.Stdout, os.Stderr)
	return l
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	l := New(LevelError, FormatJSON)
	l.SetOutput(io.Discard, io.Discard)
	return l
}

// SetOutput sets custom output writers.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = slog.New(l.handler(stdout))
	l.err = slog.New(l.handler(stderr))
}

// Redactor returns the redactor applied to every entry.
func (l *Logger) Redactor() *Redactor {
	return l.redactor
}

func (l *Logger) handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       l.level.slogLevel(),
		ReplaceAttr: renameBuiltins,
	}
	if l.format == FormatHuman {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// renameBuiltins keeps the entry layout stable across formats:
// timestamp, level (lowercase) and message.
func renameBuiltins(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339))
	case slog.LevelKey:
		return slog.String("level", strings.ToLower(a.Value.String()))
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(context.Background(), LevelDebug, msg, mergeFields(fields...))
}

// DebugContext logs a debug-level message with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, fields ...map[string]any) {
	l.log(ctx, LevelDebug, msg, mergeFields(fields...))
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(context.Background(), LevelInfo, msg, mergeFields(fields...))
}

// InfoContext logs an info-level message with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, fields ...map[string]any) {
	l.log(ctx, LevelInfo, msg, mergeFields(fields...))
}

// Warn logs a warn-level message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(context.Background(), LevelWarn, msg, mergeFields(fields...))
}

// WarnContext logs a warn-level message with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, fields ...map[string]any) {
	l.log(ctx, LevelWarn, msg, mergeFields(fields...))
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(context.Background(), LevelError, msg, mergeFields(fields...))
}

// ErrorContext logs an error-level message with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, fields ...map[string]any) {
	l.log(ctx, LevelError, msg, mergeFields(fields...))
}

func (l *Logger) log(ctx context.Context, level LogLevel, msg string, fields map[string]any) {
	l.mu.RLock()
	sink := l.out
	if level == LevelError {
		sink = l.err
	}
	l.mu.RUnlock()

	lvl := level.slogLevel()
	if !sink.Enabled(ctx, lvl) {
		return
	}

	sink.LogAttrs(ctx, lvl, msg, toAttrs(l.redactor.RedactFields(fields))...)
}

// toAttrs converts fields to attributes in key order so output is stable.
func toAttrs(fields map[string]any) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		attrs = append(attrs, toAttr(k, fields[k]))
	}
	return attrs
}

func toAttr(key string, v any) slog.Attr {
	switch val := v.(type) {
	case map[string]any:
		return slog.Attr{Key: key, Value: slog.GroupValue(toAttrs(val)...)}
	case error:
		return slog.String(key, val.Error())
	case fmt.Stringer:
		return slog.String(key, val.String())
	default:
		return slog.Any(key, v)
	}
}

// mergeFields merges multiple field maps into one, later maps winning.
func mergeFields(fields ...map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	merged := make(map[string]any)
	for _, f := range fields {
		maps.Copy(merged, f)
	}

	return merged
}

// WithFields creates a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]any) *ContextLogger {
	return &ContextLogger{
		logger: l,
		fields: fields,
	}
}

// ContextLogger wraps a Logger with context-specific fields.
type ContextLogger struct {
	logger *Logger
	fields map[string]any
}

func (cl *ContextLogger) with(fields []map[string]any) map[string]any {
	return mergeFields(append([]map[string]any{cl.fields}, fields...)...)
}

// Debug logs a debug-level message with context fields.
func (cl *ContextLogger) Debug(msg string, fields ...map[string]any) {
	cl.logger.Debug(msg, cl.with(fields))
}

// Info logs an info-level message with context fields.
func (cl *ContextLogger) Info(msg string, fields ...map[string]any) {
	cl.logger.Info(msg, cl.with(fields))
}

// Warn logs a warn-level message with context fields.
func (cl *ContextLogger) Warn(msg string, fields ...map[string]any) {
	cl.logger.Warn(msg, cl.with(fields))
}

// Error logs an error-level message with context fields.
func (cl *ContextLogger) Error(msg string, fields ...map[string]any) {
	cl.logger.Error(msg, cl.with(fields))
}
