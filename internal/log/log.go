// Package log provides structured logging for go-rokbot.
// It wraps slog with sensible defaults for production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/teslashibe/go-rokbot/pkg/feed"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options configures the global logger.
type Options struct {
	Level   string    // "debug", "info", "warn", "error"
	Format  string    // "text" or "json"; empty picks json when GO_ENV=production
	Console io.Writer // nil means stdout; io.Discard while the TUI owns the terminal
	File    *FileOptions
	Feed    *feed.Feed // Mirrors INFO and above for displays
}

// ParseLevel maps a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	Setup(Options{Level: level})
}

// Setup replaces the global logger. The returned closer flushes the log
// file, if any. Loggers obtained from With before Setup keep their old
// handler, so call Setup first thing in main.
func Setup(opts Options) io.Closer {
	lvl := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	format := opts.Format
	if format == "" {
		format = "text"
		// Use JSON in production, text in development
		if os.Getenv("GO_ENV") == "production" {
			format = "json"
		}
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	var handlers []slog.Handler
	if console != io.Discard {
		handlers = append(handlers, newHandler(format, console, handlerOpts))
	}

	var closer io.Closer = nopCloser{}
	if opts.File != nil && opts.File.Path != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		handlers = append(handlers, newHandler(format, lj, handlerOpts))
		closer = lj
	}

	if opts.Feed != nil {
		handlers = append(handlers, NewFeedHandler(opts.Feed, max(lvl, slog.LevelInfo)))
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.NewTextHandler(io.Discard, handlerOpts)
	case 1:
		h = handlers[0]
	default:
		h = &multiHandler{handlers: handlers}
	}

	l := slog.New(h)
	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
	return closer
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// L returns the global logger instance.
func L() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		Init("info")
		mu.RLock()
		l = logger
		mu.RUnlock()
	}
	return l
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
