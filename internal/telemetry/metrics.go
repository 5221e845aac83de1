package telemetry

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const maxInputSample = 256

var (
	attrKind      = attribute.Key("petchat.kind")
	attrSessionID = attribute.Key("petchat.session_id")
	attrInput     = attribute.Key("petchat.input")
	attrDegraded  = attribute.Key("petchat.degraded")
	attrError     = attribute.Key("petchat.error")
	attrOperation = attribute.Key("upstream.operation")
)

// Request kinds.
const (
	KindChat  = "chat"
	KindVideo = "video"
)

// RequestData describes one gateway call.
type RequestData struct {
	Kind      string
	SessionID string
	Input     string
	Duration  time.Duration
	Degraded  bool
	Error     error
}

// UpstreamData describes one call to the model provider.
type UpstreamData struct {
	Operation string // chat, upload, get_file, response
	Error     error
}

type metrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	upstream metric.Int64Counter
}

// meterProvider is the subset of metric.Meter used here.
type meterProvider interface {
	Int64Counter(name string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error)
	Float64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error)
}

func newMetrics(m meterProvider) (*metrics, error) {
	if m == nil {
		return &metrics{}, nil
	}
	requests, err := m.Int64Counter("petchat.requests.total", metric.WithDescription("Chat and video gateway calls."))
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram("petchat.latency.ms", metric.WithDescription("Gateway call latency in milliseconds."), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	upstream, err := m.Int64Counter("petchat.upstream.calls.total", metric.WithDescription("Calls issued to the model provider."))
	if err != nil {
		return nil, err
	}
	return &metrics{requests: requests, latency: latency, upstream: upstream}, nil
}

func (m *metrics) recordRequest(ctx context.Context, data RequestData) {
	if m == nil || m.requests == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 5)
	if data.Kind != "" {
		attrs = append(attrs, attrKind.String(data.Kind))
	}
	if data.SessionID != "" {
		attrs = append(attrs, attrSessionID.String(data.SessionID))
	}
	if input := sample(data.Input); input != "" {
		attrs = append(attrs, attrInput.String(input))
	}
	attrs = append(attrs, attrDegraded.Bool(data.Degraded), attrError.Bool(data.Error != nil))

	m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	if data.Duration > 0 && m.latency != nil {
		m.latency.Record(ctx, float64(data.Duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
}

func (m *metrics) recordUpstream(ctx context.Context, data UpstreamData) {
	if m == nil || m.upstream == nil {
		return
	}
	m.upstream.Add(ctx, 1, metric.WithAttributes(
		attrOperation.String(strings.TrimSpace(data.Operation)),
		attrError.Bool(data.Error != nil),
	))
}

func sample(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= maxInputSample {
		return value
	}
	return string([]rune(value)[:maxInputSample])
}
