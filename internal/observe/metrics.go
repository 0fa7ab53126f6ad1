// Package observe provides the gateway's observability primitives:
// OpenTelemetry metric instruments bridged to a Prometheus /metrics endpoint.
//
// A nil *Metrics is valid and records nothing, so library code can take
// metrics optionally without guarding every call site.
package observe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName is the instrumentation scope for all gateway metrics.
const meterName = "github.com/ronith256-meesho/qw-asr"

// decodeLatencyBuckets are histogram boundaries in seconds tuned for
// streaming-decode latencies.
var decodeLatencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds the gateway's metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// ActiveSessions tracks live sessions.
	ActiveSessions metric.Int64UpDownCounter

	// DecodeDuration tracks streaming-decode call latency in seconds. Use
	// with attribute.String("status", "ok"|"error").
	DecodeDuration metric.Float64Histogram

	// Events counts emitted server events. Use with
	// attribute.String("type", ...).
	Events metric.Int64Counter

	// DroppedAudio counts inbound audio messages dropped under backpressure.
	DroppedAudio metric.Int64Counter

	// Utterances counts completed utterances.
	Utterances metric.Int64Counter
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	activeSessions, err := meter.Int64UpDownCounter("asr_active_sessions",
		metric.WithDescription("Number of live recognition sessions"))
	if err != nil {
		return nil, err
	}

	decodeDuration, err := meter.Float64Histogram("asr_decode_duration_seconds",
		metric.WithDescription("Streaming-decode call latency"),
		metric.WithExplicitBucketBoundaries(decodeLatencyBuckets...))
	if err != nil {
		return nil, err
	}

	events, err := meter.Int64Counter("asr_events_total",
		metric.WithDescription("Server events emitted to clients"))
	if err != nil {
		return nil, err
	}

	droppedAudio, err := meter.Int64Counter("asr_dropped_audio_total",
		metric.WithDescription("Inbound audio messages dropped under backpressure"))
	if err != nil {
		return nil, err
	}

	utterances, err := meter.Int64Counter("asr_utterances_total",
		metric.WithDescription("Completed utterances"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ActiveSessions: activeSessions,
		DecodeDuration: decodeDuration,
		Events:         events,
		DroppedAudio:   droppedAudio,
		Utterances:     utterances,
	}, nil
}

// InitProvider creates an SDK meter provider backed by a Prometheus
// registry. The returned registry is served by the HTTP /metrics handler.
func InitProvider() (*sdkmetric.MeterProvider, *prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return provider, registry, nil
}

// SessionOpened records a session start. Safe on nil.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionClosed records a session end. Safe on nil.
func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}

// RecordDecode records one streaming-decode call. Safe on nil.
func (m *Metrics) RecordDecode(ctx context.Context, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.DecodeDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordEvent counts one emitted event. Safe on nil.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordDroppedAudio counts one dropped inbound audio message. Safe on nil.
func (m *Metrics) RecordDroppedAudio(ctx context.Context) {
	if m == nil {
		return
	}
	m.DroppedAudio.Add(ctx, 1)
}

// RecordUtterance counts one completed utterance. Safe on nil.
func (m *Metrics) RecordUtterance(ctx context.Context) {
	if m == nil {
		return
	}
	m.Utterances.Add(ctx, 1)
}
