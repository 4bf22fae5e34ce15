// Package logging contains the structured logger used throughout gatekeeper.
package logging

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger("gatekeeper")
)

// Logger is the logging interface handed to every gatekeeper component.
type Logger interface {
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	// CDebugw logs at debug level, or regardless of level when ctx is in debug mode.
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	// Errorw logs at every level.
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a child logger named "<parent>.<subname>" that shares the parent's appenders.
	Sublogger(subname string) Logger
	// With returns a child logger that adds keysAndValues to every entry.
	With(keysAndValues ...interface{}) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}

// ReplaceGlobal replaces the global logger.
func ReplaceGlobal(logger Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// Global returns the global logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return &impl{name: name, level: NewAtomicLevelAt(INFO), inUTC: true, appenders: []Appender{NewStdoutAppender()}}
}

// NewProcessLogger returns the logger of a gatekeeper process: stdout at level, plus a rotating
// file when file is set. It becomes the global logger. The returned function closes the file.
func NewProcessLogger(name string, level Level, file *FileAppenderConfig) (Logger, func() error) {
	logger := NewLogger(name)
	logger.SetLevel(level)
	closeLog := func() error { return nil }
	if file != nil {
		appender := NewFileAppender(*file)
		logger.AddAppender(appender)
		closeLog = func() error {
			return appender.Close()
		}
	}
	ReplaceGlobal(logger)
	return logger, closeLog
}

// NewBlankLogger returns a new logger that outputs Debug+ logs in UTC, but without any
// pre-existing appenders/outputs.
func NewBlankLogger(name string) Logger {
	return &impl{name: name, level: NewAtomicLevelAt(DEBUG), inUTC: true}
}

// NewTestLogger returns a new logger that outputs Debug+ logs to the test's log in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	logger := &impl{
		level:     NewAtomicLevelAt(DEBUG),
		appenders: []Appender{NewTestAppender(tb), observerCore},
	}
	return logger, observedLogs
}
