package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"tutorgrid/internal/schedule"
)

const (
	metricCascadeEvents    = "tutorgrid.cascade.events.total"
	metricCascadeRound     = "tutorgrid.cascade.displacement.round"
	metricRequestsTotal    = "tutorgrid.http.requests.total"
	metricRequestDuration  = "tutorgrid.http.request.duration.seconds"
	metricExportRunsTotal  = "tutorgrid.export.runs.total"
	metricExportDuration   = "tutorgrid.export.duration.seconds"
	metricExportedSessions = "tutorgrid.export.sessions.total"

	attrKind    = "kind"
	attrWeekday = "weekday"
	attrRoute   = "route"
	attrMethod  = "method"
	attrStatus  = "status"

	statusOK    = "ok"
	statusError = "error"
)

var (
	roundBuckets    = []float64{1, 2, 3, 5, 10, 20, 50}
	durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// EngineMetrics counts cascade trace events.
type EngineMetrics struct {
	events metric.Int64Counter
	rounds metric.Float64Histogram
}

func NewEngineMetrics(mt metric.Meter) (*EngineMetrics, error) {
	b := newMetricBuilder(mt)
	em := &EngineMetrics{
		events: b.counter(metricCascadeEvents, "Cascade trace events by kind", "{event}"),
		rounds: b.histogram(metricCascadeRound, "Cascade round of each displacement", "{round}", roundBuckets...),
	}
	if b.err != nil {
		return nil, b.err
	}
	return em, nil
}

// Record counts one trace event. A nil receiver is a no-op.
func (em *EngineMetrics) Record(ctx context.Context, ev schedule.TraceEvent) {
	if em == nil {
		return
	}
	em.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, string(ev.Kind)),
		attribute.String(attrWeekday, ev.Weekday.String()),
	))
	if ev.Kind == schedule.EventDisplaced {
		em.rounds.Record(ctx, float64(ev.Round))
	}
}

// HTTPMetrics holds request rate and duration instruments.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func NewHTTPMetrics(mt metric.Meter) (*HTTPMetrics, error) {
	b := newMetricBuilder(mt)
	hm := &HTTPMetrics{
		requests: b.counter(metricRequestsTotal, "Total number of HTTP requests", "{request}"),
		duration: b.histogram(metricRequestDuration, "HTTP request duration in seconds", "s", durationBuckets...),
	}
	if b.err != nil {
		return nil, b.err
	}
	return hm, nil
}

// RecordRequest records a finished request. A nil receiver is a no-op.
func (hm *HTTPMetrics) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if hm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(status)),
	)
	hm.requests.Add(ctx, 1, attrs)
	hm.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
	))
}

// ExportMetrics tracks calendar export runs.
type ExportMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	sessions metric.Int64Counter
}

func NewExportMetrics(mt metric.Meter) (*ExportMetrics, error) {
	b := newMetricBuilder(mt)
	xm := &ExportMetrics{
		runs:     b.counter(metricExportRunsTotal, "Calendar export runs by status", "{run}"),
		duration: b.histogram(metricExportDuration, "Calendar export duration in seconds", "s", durationBuckets...),
		sessions: b.counter(metricExportedSessions, "Sessions written by successful exports", "{session}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return xm, nil
}

// RecordRun records one export. A nil receiver is a no-op.
func (xm *ExportMetrics) RecordRun(ctx context.Context, sessions int, d time.Duration, err error) {
	if xm == nil {
		return
	}
	status := statusOK
	if err != nil {
		status = statusError
	}
	xm.runs.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	xm.duration.Record(ctx, d.Seconds())
	if err == nil {
		xm.sessions.Add(ctx, int64(sessions))
	}
}
