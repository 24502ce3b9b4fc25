// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for AleutianDraft components.
//
// The drafting service itself logs JSON to stdout via log/slog; this package
// exists for the pieces that need more than one destination at once: the
// draftctl CLI (human-readable stderr plus a machine-readable session file)
// and tests that want to capture entries.
//
// # Architecture
//
// Built on the standard library slog package, with a fan-out handler for
// multi-destination output and an exporter hook for external sinks:
//
//	┌────────────────────────────────────────────────────────────┐
//	│                        Logger                              │
//	│  ┌────────────┐  ┌─────────────┐  ┌─────────────────────┐  │
//	│  │   stderr   │  │  log file   │  │    LogExporter      │  │
//	│  │ (default)  │  │ (optional)  │  │    (optional)       │  │
//	│  └────────────┘  └─────────────┘  └─────────────────────┘  │
//	└────────────────────────────────────────────────────────────┘
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("tracking task", "task_id", taskID)
//	logger.Error("patch failed", "error", err)
//
// # File Logging
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.aleutiandraft/logs",  // supports ~ expansion
//	    Service: "draftctl",
//	})
//	defer logger.Close()
//
// File logs are named `{service}_{date}.log` and are always JSON.
//
// # Exporters
//
// Implement LogExporter to forward entries to an external system. The
// exporter receives LogEntry structs asynchronously and should buffer
// internally. BufferedExporter and WriterExporter are provided for tests.
//
// # Thread Safety
//
// Logger is safe for concurrent use. Internal state is protected by a
// mutex, and the underlying slog.Logger is itself thread-safe.
//
// # Security Considerations
//
// Nothing is redacted automatically. Generated contract text, API keys,
// and resolver prompts must not be passed as attribute values; log lengths
// and hashes instead:
//
//	// BAD: logs document content
//	logger.Info("generation done", "content", content)
//
//	// GOOD: log metadata only
//	logger.Info("generation done", "content_len", len(content))
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
// Setting a minimum level discards everything below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	// Example: "push frame received", "poll tick"
	LevelDebug Level = iota

	// LevelInfo is for normal operational events.
	// Example: "task tracked", "snapshot committed", "batch finished"
	LevelInfo

	// LevelWarn is for recoverable trouble.
	// Example: "push transport lost, degrading to poll", "fix skipped"
	LevelWarn

	// LevelError is for failed operations where the program continues.
	// Example: "resolver call failed", "snapshot store unavailable"
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LevelFromString parses a level name as found in config files.
//
// Accepts any case ("debug", "DEBUG", "Debug"). Unrecognized names fall
// back to LevelInfo so a typo in config.yaml never silences errors.
func LevelFromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// toSlogLevel bridges Level to the standard library's slog.Level.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior.
//
// A zero-value Config yields an Info-level text logger on stderr, which is
// the right default for CLI use.
//
// Development:
//
//	Config{Level: LevelDebug}
//
// CLI session with file log:
//
//	Config{
//	    Level:   LevelInfo,
//	    LogDir:  "~/.aleutiandraft/logs",
//	    Service: "draftctl",
//	}
type Config struct {
	// Level sets the minimum log level. Messages below it are discarded.
	// Default: LevelInfo
	Level Level

	// LogDir enables file logging to the given directory.
	//
	// When set, logs go to both stderr and a file named
	// "{Service}_{YYYY-MM-DD}.log". The directory is created with 0750
	// permissions if missing. Supports ~ for home-directory expansion.
	//
	// Default: "" (file logging disabled)
	LogDir string

	// Service identifies the component generating logs and is attached to
	// every entry as the "service" attribute.
	//
	// Recommended values: "draftctl", "draft", "resolver".
	// Default: "" (no service attribute)
	Service string

	// JSON switches stderr output to JSON objects instead of
	// human-readable text. File logs are always JSON regardless.
	//
	// Default: false
	JSON bool

	// Quiet disables stderr output, leaving only the file (if LogDir is
	// set) and the Exporter (if configured). Useful under a TUI where
	// stderr would corrupt the display.
	//
	// Default: false
	Quiet bool

	// Exporter optionally receives every entry at or above Level,
	// asynchronously. Export failures are dropped silently so logging
	// never disrupts the program.
	//
	// Default: nil (no export)
	Exporter LogExporter
}

// =============================================================================
// Exporter Interface
// =============================================================================

// LogExporter is the hook for forwarding entries to an external system
// (object storage, a log aggregator, a test buffer).
//
// # Implementation Requirements
//
//  1. Export must not block; buffer internally and flush in batches.
//
//  2. Handle backpressure by dropping oldest entries rather than blocking.
//
//  3. Flush sends all buffered entries; it is called during shutdown.
//
//  4. Close releases resources and is called after Flush.
type LogExporter interface {
	// Export sends one entry. Called asynchronously per entry with a
	// context carrying a short timeout. Errors are logged, never
	// propagated to the logging call site.
	Export(ctx context.Context, entry LogEntry) error

	// Flush blocks until all pending entries are delivered. Called
	// during graceful shutdown with a bounded context.
	Flush(ctx context.Context) error

	// Close releases connections, files, and other resources. Called
	// after Flush during shutdown.
	Close() error
}

// LogEntry is the structured form handed to LogExporter implementations.
type LogEntry struct {
	// Timestamp when the entry was generated (local time)
	Timestamp time.Time

	// Level of the entry
	Level Level

	// Message is the primary log message
	Message string

	// Service is the component name from Config.Service
	Service string

	// Attrs holds the key-value attributes of the entry
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with multi-destination output, an exporter
// hook, and cleanup via Close().
//
// # Thread Safety
//
// Safe for concurrent use from multiple goroutines.
//
// # Resource Management
//
// Always Close() a logger that has file logging or an exporter:
//
//	logger := logging.New(config)
//	defer logger.Close()
//
// # Child Loggers
//
// With() derives a logger carrying extra attributes:
//
//	docLogger := logger.With("document_id", docID)
//	docLogger.Info("snapshot committed") // includes document_id
type Logger struct {
	// slog is the underlying structured logger
	slog *slog.Logger

	// config stores the configuration for reference
	config Config

	// file is the optional log file handle (nil when disabled)
	file *os.File

	// exporter is the optional external sink
	exporter LogExporter

	// mu protects mutable state (file, exporter)
	mu sync.Mutex
}

// New creates a Logger for the given configuration.
//
// Destinations are assembled from config: stderr (unless Quiet), a log
// file (if LogDir is set), and the exporter (if provided). The returned
// Logger must be closed with Close() to release resources.
func New(config Config) *Logger {
	var handlers []slog.Handler

	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
	}

	if !config.Quiet {
		var stderrHandler slog.Handler
		if config.JSON {
			stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			stderrHandler = slog.NewTextHandler(os.Stderr, opts)
		}
		handlers = append(handlers, stderrHandler)
	}

	logger := &Logger{
		config:   config,
		exporter: config.Exporter,
	}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			serviceName := config.Service
			if serviceName == "" {
				serviceName = "draft"
			}
			filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, filename)

			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				// File logs are always JSON so they stay machine-parseable.
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no file still needs somewhere to go.
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level, stderr-only, text-format logger with
// service name "draft". Suitable when no file or exporter is wanted.
func Default() *Logger {
	return New(Config{
		Level:   LevelInfo,
		Service: "draft",
	})
}

// Debug logs a message at Debug level with slog-style key-value args.
//
//	logger.Debug("poll tick", "task_id", id, "interval", interval)
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs a message at Info level with slog-style key-value args.
//
//	logger.Info("batch finished",
//	    "applied", summary.Applied,
//	    "skipped", summary.Skipped,
//	)
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a message at Warn level with slog-style key-value args.
//
//	logger.Warn("degrading to poll", "task_id", id, "error", err.Error())
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs a message at Error level with slog-style key-value args.
// For fatal conditions, follow with os.Exit rather than logging twice.
//
//	logger.Error("resolver call failed", "pattern", p, "error", err.Error())
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

// With returns a new Logger carrying additional attributes. The parent
// is not modified; file handle and exporter are shared.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// Slog returns the underlying slog.Logger for features this wrapper does
// not expose (LogAttrs, custom Record handling).
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, closes it, syncs the log file, and closes
// the file. Returns the first error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// log writes to slog and, when configured, hands the entry to the exporter.
func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(args),
		}
		// Async so a slow sink never blocks the call site.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = l.exporter.Export(ctx, entry)
		}()
	}
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out records to several slog handlers, enabling
// simultaneous stderr text and file JSON output.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled reports whether any wrapped handler accepts the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to every enabled handler.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a fan-out handler whose members carry the attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a fan-out handler whose members carry the group.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// argsToMap converts slog-style key-value args to a map for LogEntry.Attrs.
// Non-string keys and trailing unpaired values are dropped.
func argsToMap(args []any) map[string]any {
	result := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			result[key] = args[i+1]
		}
	}
	return result
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// NopExporter discards all entries. Useful when export is disabled.
type NopExporter struct{}

// Export discards the entry.
func (e *NopExporter) Export(ctx context.Context, entry LogEntry) error { return nil }

// Flush is a no-op.
func (e *NopExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *NopExporter) Close() error { return nil }

var _ LogExporter = (*NopExporter)(nil)

// BufferedExporter collects entries in memory for test assertions:
//
//	exporter := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Exporter: exporter, Quiet: true})
//
//	logger.Info("fix skipped", "pattern", "TBD")
//
//	entries := exporter.Entries()
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{
		entries: make([]LogEntry, 0, 100),
	}
}

// Export appends the entry to the buffer.
func (e *BufferedExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op; entries are already in memory.
func (e *BufferedExporter) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (e *BufferedExporter) Close() error {
	return nil
}

// Entries returns a copy of the collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]LogEntry, len(e.entries))
	copy(result, e.entries)
	return result
}

var _ LogExporter = (*BufferedExporter)(nil)

// WriterExporter writes each entry to an io.Writer as a single line.
type WriterExporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterExporter creates a WriterExporter over w.
func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{w: w}
}

// Export writes the formatted entry to the writer.
func (e *WriterExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.w, "[%s] %s: %s %v\n",
		entry.Timestamp.Format(time.RFC3339),
		entry.Level,
		entry.Message,
		entry.Attrs,
	)
	return err
}

// Flush is a no-op; writes are immediate.
func (e *WriterExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op; the exporter does not own the writer.
func (e *WriterExporter) Close() error { return nil }

var _ LogExporter = (*WriterExporter)(nil)
