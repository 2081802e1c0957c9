// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"strings"
	"sync"

	"github.com/raysh454/webscan/internal/logging"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// HasInfo reports whether an info message containing substr was logged.
func (l *DummyLogger) HasInfo(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return containsAny(l.Infos, substr)
}

// HasWarn reports whether a warning containing substr was logged.
func (l *DummyLogger) HasWarn(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return containsAny(l.Warns, substr)
}

// HasError reports whether an error containing substr was logged.
func (l *DummyLogger) HasError(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return containsAny(l.Errors, substr)
}

func containsAny(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// ─── helpers ───────────────────────────────────────────────────────────

type errString struct{ s string }

func (e *errString) Error() string { return e.s }

// Err returns a plain error with message s.
func Err(s string) error { return &errString{s} }
