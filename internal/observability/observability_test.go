package observability_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tutorgrid/internal/model"
	"tutorgrid/internal/observability"
	"tutorgrid/internal/schedule"
)

func setup(t *testing.T) (*observability.Telemetry, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	tel, err := observability.New(observability.Options{
		ServiceName:  "tutorgrid-test",
		SpanExporter: spans,
		Readers:      []sdkmetric.Reader{reader},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	return tel, spans, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestTraceHook_RecordsEvents(t *testing.T) {
	t.Parallel()

	tel, spans, reader := setup(t)

	ctx, span := tel.Tracer().Start(context.Background(), "reposition")
	hook := tel.TraceHook(ctx)
	hook(schedule.TraceEvent{Kind: schedule.EventDisplaced, SessionID: "A", Weekday: model.Monday, FromLane: 1, ToLane: 2, Round: 1})
	hook(schedule.TraceEvent{Kind: schedule.EventPlaced, SessionID: "X", Weekday: model.Monday, ToLane: 1})
	span.End()

	got := spans.GetSpans()
	require.Len(t, got, 1)
	require.Len(t, got[0].Events, 2)
	assert.Equal(t, "cascade.displaced", got[0].Events[0].Name)
	assert.Equal(t, "cascade.placed", got[0].Events[1].Name)

	rm := collectMetrics(t, reader)
	events := findMetric(rm, "tutorgrid.cascade.events.total")
	require.NotNil(t, events)
	assert.Equal(t, int64(2), sumValue(t, events))

	rounds := findMetric(rm, "tutorgrid.cascade.displacement.round")
	require.NotNil(t, rounds)
	hist, ok := rounds.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestMiddleware_NamesSpanByRoute(t *testing.T) {
	t.Parallel()

	tel, spans, reader := setup(t)

	r := chi.NewRouter()
	r.Use(tel.Middleware)
	r.Delete("/api/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/abc", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "DELETE /api/sessions/{id}", got[0].Name)

	requests := findMetric(collectMetrics(t, reader), "tutorgrid.http.requests.total")
	require.NotNil(t, requests)
	assert.Equal(t, int64(1), sumValue(t, requests))
}

func TestHandler_ServesPrometheus(t *testing.T) {
	t.Parallel()

	tel, _, _ := setup(t)
	tel.Export.RecordRun(context.Background(), 3, 20*time.Millisecond, nil)
	tel.Engine.Record(context.Background(), schedule.TraceEvent{Kind: schedule.EventCompacted, Weekday: model.Friday})

	srv := httptest.NewServer(tel.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tutorgrid_cascade_events")
	assert.Contains(t, string(body), "tutorgrid_export_runs")
}

func TestNilTelemetry(t *testing.T) {
	t.Parallel()

	var tel *observability.Telemetry

	tel.TraceHook(context.Background())(schedule.TraceEvent{Kind: schedule.EventRoundLimit})
	require.NoError(t, tel.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h := tel.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
