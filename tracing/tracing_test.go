package tracing

import (
	"context"
	"fmt"
	"testing"

	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineLogger struct {
	ulogger.TestLogger
	lastLog string
}

func (l *lineLogger) Infof(format string, args ...interface{}) {
	l.lastLog = fmt.Sprintf(format, args...)
}

func TestTracing(t *testing.T) {
	logger := &lineLogger{}

	_, _, deferFn := StartTracing(
		context.Background(),
		"TestTracing",
		WithLogMessage(
			logger,
			"%s %s",
			"hello",
			"world",
		),
	)

	assert.Equal(t, "hello world", logger.lastLog)

	deferFn()

	assert.Contains(t, logger.lastLog, "hello world DONE in")
}

func TestTracingCounterAndHistogram(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_tracing_counter"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_tracing_histogram"})

	ctx, stat, deferFn := StartTracing(context.Background(), "outer", WithCounter(counter), WithHistogram(histogram), WithTag("owner", "0x01"))
	require.NotNil(t, stat)

	_, child, childDone := StartTracing(ctx, "inner")
	require.NotNil(t, child)
	childDone()

	deferFn()

	assert.InDelta(t, 1, testutil.ToFloat64(counter), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))

	RecordError(ctx, nil)
}

func TestInitOtelTracerDisabled(t *testing.T) {
	tSettings := settings.NewSettings()
	tSettings.Tracing.Enabled = false

	require.NoError(t, InitOtelTracer(ulogger.TestLogger{}, tSettings))
	require.NoError(t, ShutdownTracer(context.Background()))
}

func TestInitOtelTracerRequiresCollector(t *testing.T) {
	tSettings := settings.NewSettings()
	tSettings.Tracing.Enabled = true
	tSettings.Tracing.CollectorURL = ""

	err := InitOtelTracer(ulogger.TestLogger{}, tSettings)
	require.Error(t, err)
}

func TestWithParentStat(t *testing.T) {
	parent := gocore.NewStat("tracing_parent_test")

	ctx, stat, deferFn := StartTracing(context.Background(), "child", WithParentStat(parent))
	deferFn()

	assert.Same(t, parent.NewStat("child"), stat)

	// a stat already in the context wins over the default parent
	_, nested, nestedDone := StartTracing(ctx, "nested", WithParentStat(parent))
	nestedDone()

	assert.Same(t, stat.NewStat("nested"), nested)
}
