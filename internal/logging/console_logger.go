package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ConsoleLogger writes leveled log lines through a tint slog handler.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	logger *slog.Logger
}

type consoleOptions struct {
	writer   io.Writer
	level    slog.Level
	noColor  bool
	omitTime bool
}

// Option configures a ConsoleLogger.
type Option func(*consoleOptions)

// WithWriter sets the destination. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *consoleOptions) {
		o.writer = w
	}
}

// WithLevel sets the minimum level. Overrides the verbose flag.
func WithLevel(level slog.Level) Option {
	return func(o *consoleOptions) {
		o.level = level
	}
}

// WithNoColor disables ANSI colors.
func WithNoColor() Option {
	return func(o *consoleOptions) {
		o.noColor = true
	}
}

// WithoutTime drops the timestamp from every line.
func WithoutTime() Option {
	return func(o *consoleOptions) {
		o.omitTime = true
	}
}

// NewConsoleLogger creates a new ConsoleLogger.
// If verbose is true, Verbose() calls will produce output.
// If verbose is false, Verbose() calls are no-ops.
func NewConsoleLogger(verbose bool, opts ...Option) *ConsoleLogger {
	o := consoleOptions{
		writer: os.Stderr,
		level:  slog.LevelInfo,
	}
	if verbose {
		o.level = slog.LevelDebug
	}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &tint.Options{
		Level:      o.level,
		TimeFormat: time.TimeOnly,
		NoColor:    o.noColor,
	}
	if o.omitTime {
		handlerOpts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}

	return &ConsoleLogger{logger: slog.New(tint.NewHandler(o.writer, handlerOpts))}
}

// Slog exposes the underlying structured logger.
func (l *ConsoleLogger) Slog() *slog.Logger {
	return l.logger
}

// With returns a logger that adds the given attributes to every line.
func (l *ConsoleLogger) With(args ...any) *ConsoleLogger {
	return &ConsoleLogger{logger: l.logger.With(args...)}
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	l.log(slog.LevelDebug, format, args)
}

// Info logs informational messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, format, args)
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args)
}

func (l *ConsoleLogger) log(level slog.Level, format string, args []interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.logger.Log(ctx, level, msg)
}

// ParseLevel maps a configured level name to a slog level.
// An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
