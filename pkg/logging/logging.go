package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Format selects the slog handler
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures a Logger
type Options struct {
	Level  LogLevel
	Format Format
	Output io.Writer // defaults to os.Stderr
}

// Logger wraps slog.Logger with collector-specific functionality
type Logger struct {
	*slog.Logger
	component string
}

// ParseLevel validates a level name
func ParseLevel(s string) (LogLevel, error) {
	switch LogLevel(s) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return LogLevel(s), nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatAuto, FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown log format %q (want auto, text or json)", s)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates the process logger. It is called once at startup and the
// result is handed to every component that logs.
func New(component string, opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level.slogLevel()}

	var handler slog.Handler
	if resolveFormat(opts.Format, out) == FormatText {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: component,
	}
}

// resolveFormat picks text for terminals and JSON otherwise when format is auto
func resolveFormat(format Format, out io.Writer) Format {
	if format != FormatAuto && format != "" {
		return format
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// Discard returns a logger that drops everything, for tests and tools
func Discard() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		component: "discard",
	}
}

// WithComponent creates a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		component: component,
	}
}

// WithAccount creates a logger bound to one account
func (l *Logger) WithAccount(name string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("account", name),
		component: l.component,
	}
}

// WithCycle creates a logger with claim cycle context
func (l *Logger) WithCycle(cycleID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("cycle_id", cycleID),
		component: l.component,
	}
}

// Debug logs a debug message with component context
func (l *Logger) Debug(msg string, args ...any) {
	l.Logger.Debug(msg, append([]any{"component", l.component}, args...)...)
}

// Info logs an info message with component context
func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, append([]any{"component", l.component}, args...)...)
}

// Warn logs a warning message with component context
func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, append([]any{"component", l.component}, args...)...)
}

// Error logs an error message with component context
func (l *Logger) Error(msg string, args ...any) {
	l.Logger.Error(msg, append([]any{"component", l.component}, args...)...)
}

// LogStart logs collector startup information
func (l *Logger) LogStart(accounts int, version string) {
	l.Info("collector starting",
		"accounts", accounts,
		"version", version,
		"pid", os.Getpid())
}

// LogClaimSuccess logs a successful claim
func (l *Logger) LogClaimSuccess(reward, balance float64, streak int) {
	l.Info("claimed reward",
		"reward", fmt.Sprintf("$%.2f", reward),
		"new_balance", fmt.Sprintf("$%.2f", balance),
		"login_streak", streak)
}

// LogClaimFailure logs a failed facade call
func (l *Logger) LogClaimFailure(stage, kind, hint string, err error) {
	l.Error("could not claim reward",
		"stage", stage,
		"kind", kind,
		"hint", hint,
		"error", err.Error())
}

// LogBackoff logs entry into the backoff state
func (l *Logger) LogBackoff(delay time.Duration, failures int) {
	l.Warn("backing off",
		"delay", delay.String(),
		"consecutive_failures", failures)
}

// LogWait logs a wait decision; human is the formatted duration
func (l *Logger) LogWait(reason string, wait time.Duration, human string) {
	l.Debug("waiting",
		"reason", reason,
		"wait", wait.String(),
		"human", human)
}

// LogError logs error events with context
func (l *Logger) LogError(operation string, err error, context ...any) {
	args := append([]any{"operation", operation, "error", err.Error()}, context...)
	l.Error("operation failed", args...)
}
