package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/schedule"
)

var errRoundLimit = errors.New("cascade round limit reached")

// TraceHook returns the engine trace for one edit made under ctx. Each event
// is counted, added to the span in ctx when it is recording, and logged at
// debug level. A round-limit event is logged as an error.
func (t *Telemetry) TraceHook(ctx context.Context) schedule.TraceFunc {
	span := trace.SpanFromContext(ctx)
	var em *EngineMetrics
	if t != nil {
		em = t.Engine
	}

	return func(ev schedule.TraceEvent) {
		em.Record(ctx, ev)

		if span.IsRecording() {
			span.AddEvent("cascade."+string(ev.Kind), trace.WithAttributes(
				attribute.String("session.id", ev.SessionID),
				attribute.String("session.label", ev.Label),
				attribute.String("weekday", ev.Weekday.String()),
				attribute.Int("lane.from", ev.FromLane),
				attribute.Int("lane.to", ev.ToLane),
				attribute.Int("round", ev.Round),
			))
		}

		kv := []any{
			"kind", string(ev.Kind),
			"id", ev.SessionID,
			"label", ev.Label,
			"weekday", ev.Weekday.String(),
			"from_lane", ev.FromLane,
			"to_lane", ev.ToLane,
			"round", ev.Round,
		}
		if ev.Kind == schedule.EventRoundLimit {
			appLog.Error("cascade stopped with residual overlap", errRoundLimit, kv...)
			return
		}
		appLog.Debug("cascade event", kv...)
	}
}
