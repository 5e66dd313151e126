package binding

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Telemetry records binding events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

const instrumentationName = "github.com/goliatone/go-widgetbind"

// per-widget keys would explode metric cardinality.
var skippedMetricAttributes = map[string]struct{}{
	"widget_id": {},
	"error":     {},
}

// OTelTelemetry counts every recorded event with an OpenTelemetry counter
// named after the event.
type OTelTelemetry struct {
	meter    metric.Meter
	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	onError  func(error)
}

// NewOTelTelemetry builds telemetry on meter, or on the global meter provider
// when meter is nil.
func NewOTelTelemetry(meter metric.Meter) *OTelTelemetry {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	return &OTelTelemetry{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		onError:  otel.Handle,
	}
}

// Record implements Telemetry.
func (t *OTelTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	counter, err := t.counter(event)
	if err != nil {
		t.onError(err)
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(metricAttributes(payload)...))
}

func (t *OTelTelemetry) counter(event string) (metric.Int64Counter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.counters[event]; ok {
		return c, nil
	}
	c, err := t.meter.Int64Counter(event, metric.WithDescription("go-widgetbind event "+event))
	if err != nil {
		return nil, fmt.Errorf("binding: create counter %s: %w", event, err)
	}
	t.counters[event] = c
	return c, nil
}

func metricAttributes(payload map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(payload))
	for k, v := range payload {
		if _, skip := skippedMetricAttributes[k]; skip {
			continue
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

// MultiTelemetry fans a record out to several sinks.
type MultiTelemetry []Telemetry

// Record implements Telemetry.
func (m MultiTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	for _, t := range m {
		if t != nil {
			t.Record(ctx, event, payload)
		}
	}
}
