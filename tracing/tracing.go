// Package tracing combines an OpenTelemetry span, a gocore stat and optional prometheus and log output
// into one StartTracing call.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "escrowledger"

type Options func(s *TraceOptions)

type TraceOptions struct {
	ParentStat *gocore.Stat
	Histogram  prometheus.Observer
	Counter    prometheus.Counter
	Logger     ulogger.Logger
	LogMessage string
	LogArgs    []interface{}
	Attributes []attribute.KeyValue
}

func WithParentStat(stat *gocore.Stat) Options {
	return func(s *TraceOptions) {
		s.ParentStat = stat
	}
}

// WithHistogram sets the prometheus histogram to be observed when the span is finished.
func WithHistogram(histogram prometheus.Observer) Options {
	return func(s *TraceOptions) {
		s.Histogram = histogram
	}
}

// WithCounter sets the prometheus counter to be incremented when the span is finished.
func WithCounter(counter prometheus.Counter) Options {
	return func(s *TraceOptions) {
		s.Counter = counter
	}
}

// WithLogMessage logs format at INFO when the span starts and again, with the elapsed time, when it ends.
// Use it on transport handlers, not on internal functions.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) Options {
	return func(s *TraceOptions) {
		s.Logger = logger
		s.LogMessage = format
		s.LogArgs = args
	}
}

func WithTag(key, value string) Options {
	return func(s *TraceOptions) {
		s.Attributes = append(s.Attributes, attribute.String(key, value))
	}
}

// StartTracing starts a new span with the given name and returns a context with the span and a function to finish the span.
func StartTracing(ctx context.Context, name string, setOptions ...Options) (context.Context, *gocore.Stat, func()) {
	options := &TraceOptions{}
	for _, opt := range setOptions {
		opt(options)
	}

	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(options.Attributes...))

	var (
		start time.Time
		stat  *gocore.Stat
	)

	if options.ParentStat != nil {
		start, stat, ctx = NewStatFromContext(spanCtx, name, options.ParentStat)
	} else {
		start, stat, ctx = StartStatFromContext(spanCtx, name)
	}

	if options.Logger != nil && options.LogMessage != "" {
		options.Logger.Infof(options.LogMessage, options.LogArgs...)
	}

	return ctx, stat, func() {
		span.End()
		stat.AddTime(start)

		if options.Histogram != nil {
			options.Histogram.Observe(time.Since(start).Seconds())
		}

		if options.Counter != nil {
			options.Counter.Inc()
		}

		if options.Logger != nil && options.LogMessage != "" {
			done := fmt.Sprintf(" DONE in %s", time.Since(start))
			options.Logger.Infof(options.LogMessage+done, options.LogArgs...)
		}
	}
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	trace.SpanFromContext(ctx).RecordError(err)
}
