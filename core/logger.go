package core

import (
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior; the default writes through grip.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// GripLogger sends log messages to a grip Journaler as message.Fields.
// With a nil Journaler it logs through grip's process-wide sender.
type GripLogger struct {
	journaler grip.Journaler
}

// NewGripLogger creates a GripLogger writing to j (nil for grip's global logger).
func NewGripLogger(j grip.Journaler) *GripLogger {
	return &GripLogger{journaler: j}
}

// NewDefaultLogger returns the logger used when none is configured.
func NewDefaultLogger() Logger {
	return NewGripLogger(nil)
}

func compose(msg string, fields []Field) message.Composer {
	f := make(message.Fields, len(fields))
	for _, field := range fields {
		f[field.Key] = field.Value
	}
	return message.MakeFieldsMessage(msg, f)
}

// Debug logs a debug message
func (l *GripLogger) Debug(msg string, fields ...Field) {
	if l.journaler == nil {
		grip.Debug(compose(msg, fields))
		return
	}
	l.journaler.Debug(compose(msg, fields))
}

// Info logs an info message
func (l *GripLogger) Info(msg string, fields ...Field) {
	if l.journaler == nil {
		grip.Info(compose(msg, fields))
		return
	}
	l.journaler.Info(compose(msg, fields))
}

// Warn logs a warning message
func (l *GripLogger) Warn(msg string, fields ...Field) {
	if l.journaler == nil {
		grip.Warning(compose(msg, fields))
		return
	}
	l.journaler.Warning(compose(msg, fields))
}

// Error logs an error message
func (l *GripLogger) Error(msg string, fields ...Field) {
	if l.journaler == nil {
		grip.Error(compose(msg, fields))
		return
	}
	l.journaler.Error(compose(msg, fields))
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
