package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/claimrecon"

// Metrics holds the reconciliation and scoring instruments
type Metrics struct {
	EpisodesLinked      metric.Int64Counter
	EpisodesCompleted   metric.Int64Counter
	RiskScoresComputed  metric.Int64Counter
	ScoringDuration     metric.Float64Histogram
	DegradedDependency  metric.Int64Counter
	CacheHitCount       metric.Int64Counter
	CacheMissCount      metric.Int64Counter
	NotificationFailure metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing, metrics and runtime instrumentation
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		GetLogger().Warn().Err(err).Msg("failed to start runtime instrumentation")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics registers the application instruments on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	if m.EpisodesLinked, err = meter.Int64Counter("reconciliation.episodes.linked",
		metric.WithDescription("Episodes created or re-linked, by match method")); err != nil {
		return nil, err
	}
	if m.EpisodesCompleted, err = meter.Int64Counter("reconciliation.episodes.completed",
		metric.WithDescription("Episodes transitioned to COMPLETE")); err != nil {
		return nil, err
	}
	if m.RiskScoresComputed, err = meter.Int64Counter("risk.scores.computed",
		metric.WithDescription("Risk scores calculated, by risk level")); err != nil {
		return nil, err
	}
	if m.ScoringDuration, err = meter.Float64Histogram("risk.scoring.duration",
		metric.WithDescription("Risk score calculation duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.DegradedDependency, err = meter.Int64Counter("risk.dependency.degraded",
		metric.WithDescription("Optional scoring signals replaced by a neutral value")); err != nil {
		return nil, err
	}
	if m.CacheHitCount, err = meter.Int64Counter("cache.hit.count",
		metric.WithDescription("Number of cache hits")); err != nil {
		return nil, err
	}
	if m.CacheMissCount, err = meter.Int64Counter("cache.miss.count",
		metric.WithDescription("Number of cache misses")); err != nil {
		return nil, err
	}
	if m.NotificationFailure, err = meter.Int64Counter("notification.publish.failures",
		metric.WithDescription("Event publishes that failed and were dropped")); err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error in the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// The Record helpers accept a nil *Metrics so callers can run without telemetry.

// RecordEpisodeLinked counts a linked episode
func RecordEpisodeLinked(ctx context.Context, m *Metrics, method string) {
	if m == nil {
		return
	}
	m.EpisodesLinked.Add(ctx, 1, metric.WithAttributes(attribute.String("match.method", method)))
}

// RecordEpisodeCompleted counts a completed episode
func RecordEpisodeCompleted(ctx context.Context, m *Metrics) {
	if m == nil {
		return
	}
	m.EpisodesCompleted.Add(ctx, 1)
}

// RecordRiskScore counts a calculated score and its duration
func RecordRiskScore(ctx context.Context, m *Metrics, level string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("risk.level", level))
	m.RiskScoresComputed.Add(ctx, 1, attrs)
	m.ScoringDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordDegraded counts a degraded optional dependency
func RecordDegraded(ctx context.Context, m *Metrics, dependency string) {
	if m == nil {
		return
	}
	m.DegradedDependency.Add(ctx, 1, metric.WithAttributes(attribute.String("dependency", dependency)))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, m *Metrics, keyspace string) {
	if m == nil {
		return
	}
	m.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.keyspace", keyspace)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, m *Metrics, keyspace string) {
	if m == nil {
		return
	}
	m.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.keyspace", keyspace)))
}

// RecordNotificationFailure counts a dropped publish
func RecordNotificationFailure(ctx context.Context, m *Metrics, eventType string) {
	if m == nil {
		return
	}
	m.NotificationFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", eventType)))
}
