package tracing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	mu sync.Mutex
	tp *sdktrace.TracerProvider
)

// InitOtelTracer installs a global tracer provider exporting over OTLP/HTTP. It is a no-op when tracing is
// disabled or a provider is already installed.
func InitOtelTracer(logger ulogger.Logger, tSettings *settings.Settings) error {
	if !tSettings.Tracing.Enabled {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if tp != nil {
		return nil
	}

	if tSettings.Tracing.CollectorURL == "" {
		return errors.NewConfigurationError("tracing_collectorURL is required when tracing is enabled")
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(tSettings.Tracing.CollectorURL),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return errors.NewConfigurationError("failed to create OTLP exporter", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", tSettings.ServiceName),
			attribute.Int64("escrow.chain_id", int64(tSettings.Escrow.ChainID)), //nolint:gosec // chain ids are small
		),
	)
	if err != nil {
		return errors.NewConfigurationError("failed to create tracing resource", err)
	}

	tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tSettings.Tracing.SampleRate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Infof("[Tracing] exporting spans to %s (sample rate %.2f)", tSettings.Tracing.CollectorURL, tSettings.Tracing.SampleRate)

	return nil
}

// ShutdownTracer flushes and stops the provider installed by InitOtelTracer. Safe to call more than once.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tp == nil {
		return nil
	}

	if err := tp.ForceFlush(ctx); err != nil && !strings.Contains(err.Error(), "connection refused") {
		return errors.NewProcessingError("failed to flush spans", err)
	}

	if err := tp.Shutdown(ctx); err != nil {
		return errors.NewProcessingError("failed to shutdown tracer", err)
	}

	tp = nil

	return nil
}
