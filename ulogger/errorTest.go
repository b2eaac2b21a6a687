package ulogger

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Logf(format string, args ...any)
}

type tHelper = interface {
	Helper()
}

// ErrorTestLogger fails the test on any Errorf or Fatalf call. Debug, info and warn output is dropped.
type ErrorTestLogger struct {
	t                TestingT
	skipCancelOnFail atomic.Bool
	cancelFn         func()
	shutdown         atomic.Bool
}

func NewErrorTestLogger(t TestingT, cancelFn ...func()) *ErrorTestLogger {
	l := &ErrorTestLogger{t: t}
	if len(cancelFn) > 0 {
		l.cancelFn = cancelFn[0]
	}

	return l
}

// SkipCancelOnFail makes error-level lines informational, for tests that provoke them on purpose.
func (l *ErrorTestLogger) SkipCancelOnFail(skip bool) {
	l.skipCancelOnFail.Store(skip)
}

// Shutdown stops the logger from touching testing.T once the test is cleaning up.
func (l *ErrorTestLogger) Shutdown() {
	l.shutdown.Store(true)
}

func (l *ErrorTestLogger) LogLevel() int {
	return 0
}

func (l *ErrorTestLogger) SetLogLevel(level string) {}

func (l *ErrorTestLogger) New(service string, options ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Duplicate(options ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Debugf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Infof(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Warnf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Errorf(format string, args ...interface{}) {
	l.fail("ERR_LEVEL", format, args...)
}

func (l *ErrorTestLogger) Fatalf(format string, args ...interface{}) {
	l.fail("FATAL_LEVEL", format, args...)
}

func (l *ErrorTestLogger) fail(level, format string, args ...interface{}) {
	if l.shutdown.Load() {
		return
	}

	if h, ok := l.t.(tHelper); ok {
		h.Helper()
	}

	_, file, line, _ := runtime.Caller(2)
	msg := fmt.Sprintf("%s:%d: %s %s", file, line, level, fmt.Sprintf(format, args...))

	if l.skipCancelOnFail.Load() {
		l.t.Logf("%s", msg)
		return
	}

	if l.cancelFn != nil {
		l.cancelFn()
	}

	l.t.Errorf("%s", msg)
}
