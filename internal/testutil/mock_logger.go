// Package testutil holds shared test doubles and fixtures for DealScope.
package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
)

// LogMessage is one entry captured by MockLogger.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// Field returns the string form of the named field, if present.
func (m LogMessage) Field(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			if f.String != "" {
				return f.String, true
			}
			if f.Interface != nil {
				if s, ok := f.Interface.(string); ok {
					return s, true
				}
			}
			return "", true
		}
	}
	return "", false
}

type sink struct {
	mu       sync.Mutex
	messages []LogMessage
}

// MockLogger records entries so tests can assert on logging behaviour.
// Children created by With, Named, WithContext and WithError share the
// parent's record and carry their fields forward.
type MockLogger struct {
	sink   *sink
	fields []logging.Field
}

// NewMockLogger returns an empty recorder.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &sink{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)
	m.sink.mu.Lock()
	m.sink.messages = append(m.sink.messages, LogMessage{Level: level, Message: msg, Fields: all})
	m.sink.mu.Unlock()
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	child := &MockLogger{sink: m.sink}
	child.fields = append(append(child.fields, m.fields...), fields...)
	return child
}

func (m *MockLogger) Named(string) logging.Logger { return m }

func (m *MockLogger) WithContext(ctx context.Context) logging.Logger {
	return m.With(logging.ContextFields(ctx)...)
}

func (m *MockLogger) WithError(err error) logging.Logger {
	if err == nil {
		return m
	}
	return m.With(logging.Err(err))
}

func (m *MockLogger) SetLevel(logging.LogLevel) {}
func (m *MockLogger) Sync() error               { return nil }

// Messages returns a copy of everything logged so far.
func (m *MockLogger) Messages() []LogMessage {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	out := make([]LogMessage, len(m.sink.messages))
	copy(out, m.sink.messages)
	return out
}

// Clear drops all recorded entries.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	m.sink.messages = nil
	m.sink.mu.Unlock()
}

// HasMessage reports whether msg was logged at level.
func (m *MockLogger) HasMessage(level, msg string) bool {
	_, ok := m.Find(level, msg)
	return ok
}

// Find returns the first entry logged at level with msg.
func (m *MockLogger) Find(level, msg string) (LogMessage, bool) {
	for _, lm := range m.Messages() {
		if lm.Level == level && lm.Message == msg {
			return lm, true
		}
	}
	return LogMessage{}, false
}
