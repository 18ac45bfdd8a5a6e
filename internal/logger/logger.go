// Package logger provides leveled logging for the language-toolkit application.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
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

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(name string) (Level, error) {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	switch lvl {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return LevelDebug, nil
	case zerolog.WarnLevel:
		return LevelWarn, nil
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return LevelError, nil
	default:
		return LevelInfo, nil
	}
}

// Logger wraps a zerolog logger with printf-style helpers.
type Logger struct {
	mu  sync.RWMutex
	zl  zerolog.Logger
	out io.Writer
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return fmt.Sprintf("[%s]", i)
	}
	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%s", i)
	}
	return output
}

// New creates a logger writing human-readable lines to output.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		zl:  zerolog.New(consoleWriter(output)).Level(level.zerolog()).With().Timestamp().Logger(),
		out: output,
	}
}

var defaultLogger = New(LevelInfo, os.Stdout)

func init() {
	if _, ok := os.LookupEnv("DEBUG"); ok {
		SetLevel(LevelDebug)
	}
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.zl = defaultLogger.zl.Level(level.zerolog())
}

// SetOutput sets the output writer for the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	lvl := defaultLogger.zl.GetLevel()
	defaultLogger.zl = zerolog.New(consoleWriter(w)).Level(lvl).With().Timestamp().Logger()
	defaultLogger.out = w
}

// SetJSONOutput switches the default logger to JSON lines on w.
func SetJSONOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	lvl := defaultLogger.zl.GetLevel()
	defaultLogger.zl = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	defaultLogger.out = w
}

// InitFile redirects the default logger to a timestamped JSON file under dir.
// The TUI uses this so log lines do not tear the terminal.
func InitFile(dir string) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("language-toolkit_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	SetJSONOutput(f)
	return f, nil
}

// With returns a child logger carrying a fixed key/value field.
func (l *Logger) With(key, value string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{zl: l.zl.With().Str(key, value).Logger(), out: l.out}
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.WithLevel(level)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.event(zerolog.DebugLevel).Msgf(format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.event(zerolog.InfoLevel).Msgf(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.event(zerolog.WarnLevel).Msgf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.event(zerolog.ErrorLevel).Msgf(format, args...)
}

// Package-level functions that use the default logger

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

// Info logs an informational message using the default logger.
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// Fatal logs a message and exits the program.
func Fatal(format string, args ...interface{}) {
	defaultLogger.mu.RLock()
	zl := defaultLogger.zl
	defaultLogger.mu.RUnlock()
	zl.Fatal().Msgf(format, args...)
}
