package ulogger

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerWritesToWriter(t *testing.T) {
	var buf bytes.Buffer

	logger := New("ledger", WithWriter(&buf), WithLevel("INFO"))
	logger.Infof("reserved nonce %d", 7)
	logger.Debugf("hidden")

	out := buf.String()
	assert.Contains(t, out, "reserved nonce 7")
	assert.Contains(t, out, "ledger")
	assert.NotContains(t, out, "hidden")
}

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("escrow", WithWriter(&buf), WithLevel("debug"))
	assert.Equal(t, int(gocore.DEBUG), logger.LogLevel())

	logger.SetLogLevel("WARN")
	assert.Equal(t, int(gocore.WARN), logger.LogLevel())

	logger.SetLogLevel("bogus")
	assert.Equal(t, int(gocore.INFO), logger.LogLevel())
}

func TestZeroLoggerNewInheritsWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer

	parent := NewZeroLogger("escrow", WithWriter(&buf), WithLevel("ERROR"))
	child := parent.New("store")

	child.Warnf("dropped")
	child.Errorf("kept %s", "line")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept line")
	assert.Contains(t, buf.String(), "store")
}

func TestZeroLoggerDuplicate(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("clock", WithWriter(&buf), WithLevel("INFO"))
	dup := logger.Duplicate(WithLevel("DEBUG"))

	dup.Debugf("tick %d", 3)
	assert.Contains(t, buf.String(), "tick 3")
	assert.Equal(t, int(gocore.INFO), logger.LogLevel())
}

func TestTestLoggerIsSilent(t *testing.T) {
	var logger Logger = TestLogger{}

	logger.Errorf("ignored")
	require.Equal(t, logger, logger.New("x"))
	require.Equal(t, 0, logger.LogLevel())
}

type recordingT struct {
	logs   []string
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() {}

func (r *recordingT) Logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func TestErrorTestLogger(t *testing.T) {
	rec := &recordingT{}
	cancelled := false

	logger := NewErrorTestLogger(rec, func() { cancelled = true })
	logger.Infof("fine")
	assert.Empty(t, rec.errors)

	logger.Errorf("boom %d", 1)
	require.Len(t, rec.errors, 1)
	assert.Contains(t, rec.errors[0], "ERR_LEVEL boom 1")
	assert.True(t, cancelled)

	logger.SkipCancelOnFail(true)
	logger.Errorf("expected")
	assert.Len(t, rec.errors, 1)
	assert.Len(t, rec.logs, 1)

	logger.Shutdown()
	logger.SkipCancelOnFail(false)
	logger.Fatalf("after shutdown")
	assert.Len(t, rec.errors, 1)
}
