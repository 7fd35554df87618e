package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	appLog "tutorgrid/internal/log"
)

const (
	defaultServiceName  = "tutorgrid"
	instrumentationName = "tutorgrid"
)

// Options configures New.
type Options struct {
	// ServiceName is attached to every span and metric. Empty means "tutorgrid".
	ServiceName string

	// SpanExporter receives finished spans. Nil writes them to the debug log.
	SpanExporter sdktrace.SpanExporter

	// Readers are registered next to the Prometheus exporter.
	Readers []sdkmetric.Reader
}

// Telemetry owns the meter and tracer providers for one process. All of its
// methods accept a nil receiver, which disables instrumentation.
type Telemetry struct {
	Engine *EngineMetrics
	HTTP   *HTTPMetrics
	Export *ExportMetrics

	tracer  trace.Tracer
	handler http.Handler
	mp      *sdkmetric.MeterProvider
	tp      *sdktrace.TracerProvider
}

// New builds a Prometheus-backed meter provider and a tracer provider. Each
// call uses its own Prometheus registry.
func New(opts Options) (*Telemetry, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaultServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mopts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	}
	for _, r := range opts.Readers {
		mopts = append(mopts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mopts...)
	meter := mp.Meter(instrumentationName)

	spanExporter := opts.SpanExporter
	if spanExporter == nil {
		spanExporter = logExporter{}
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(spanExporter),
	)

	t := &Telemetry{
		tracer:  tp.Tracer(instrumentationName),
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		mp:      mp,
		tp:      tp,
	}
	if t.Engine, err = NewEngineMetrics(meter); err != nil {
		return nil, err
	}
	if t.HTTP, err = NewHTTPMetrics(meter); err != nil {
		return nil, err
	}
	if t.Export, err = NewExportMetrics(meter); err != nil {
		return nil, err
	}
	return t, nil
}

// Handler serves the Prometheus scrape endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return http.NotFoundHandler()
	}
	return t.handler
}

// Tracer returns the process tracer, or a no-op tracer for a nil Telemetry.
func (t *Telemetry) Tracer() trace.Tracer {
	if t == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return t.tracer
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return errors.Join(t.tp.Shutdown(ctx), t.mp.Shutdown(ctx))
}

// logExporter writes finished spans to the debug log.
type logExporter struct{}

func (logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if !appLog.Enabled(appLog.LevelDebug) {
		return nil
	}
	for _, s := range spans {
		appLog.Debug("span finished",
			"name", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"duration", s.EndTime().Sub(s.StartTime()).String(),
			"events", len(s.Events()),
			"status", s.Status().Code.String(),
		)
	}
	return nil
}

func (logExporter) Shutdown(context.Context) error { return nil }
