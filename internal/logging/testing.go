// internal/logging/testing.go
package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry in memory. Config can be edited before
// ForModule is called to exercise module level overrides.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger that records from TraceLevel up.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	cfg := NewDefaultConfig()
	cfg.Level = Level(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(&levelGate{Core: core, enabler: TraceLevel}), config: cfg},
		observed: observed,
	}
}

// Config returns the configuration ForModule consults.
func (t *TestLogger) Config() *Config {
	return t.config
}

func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

func (t *TestLogger) logged(level zapcore.Level, msgContains string) bool {
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return true
		}
	}
	return false
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if !t.logged(level, msgContains) {
		tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
	}
}

func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.logged(level, msgContains) {
		tb.Errorf("unexpected log at %v containing %q", level, msgContains)
	}
}

// AssertField fails tb unless an entry with message msg has key set to
// expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if got, ok := entry.ContextMap()[key]; ok && reflect.DeepEqual(got, expected) {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertModuleField checks the module.id field of msg.
func (t *TestLogger) AssertModuleField(tb testing.TB, msg, moduleID string) {
	tb.Helper()
	t.AssertField(tb, msg, "module.id", moduleID)
}
