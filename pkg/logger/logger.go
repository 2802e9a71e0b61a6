package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log level
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Logger provides structured logging
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing JSON lines to stdout. The level comes from
// LOG_LEVEL and defaults to info.
func New() *Logger {
	return NewWithWriter(os.Stdout, Level(os.Getenv("LOG_LEVEL")))
}

// NewWithWriter creates a logger on w at the given level.
func NewWithWriter(w io.Writer, level Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zl := zerolog.New(w).With().Timestamp().Str("service", "fitfly").Logger().Level(parseLevel(level))
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that carries fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Str(f.Key, f.Value)
	}
	return &Logger{zl: ctx.Logger()}
}

// Log writes a structured log entry
func (l *Logger) Log(level Level, message string, fields ...Field) {
	event := l.zl.WithLevel(parseLevel(level))
	for _, f := range fields {
		event = event.Str(f.Key, f.Value)
	}
	event.Msg(message)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...Field) {
	l.Log(LevelInfo, message, fields...)
}

// Warn logs a warning
func (l *Logger) Warn(message string, fields ...Field) {
	l.Log(LevelWarn, message, fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...Field) {
	l.Log(LevelError, message, fields...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...Field) {
	l.Log(LevelDebug, message, fields...)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value string
}

// F creates a Field
func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Err creates the conventional error field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

func parseLevel(level Level) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
