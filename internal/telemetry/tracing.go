// Package telemetry wires OpenTelemetry tracing and metrics for the relay.
// A nil *Manager is valid and records nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ChamsBouzaiene/petchat"

// Config drives how telemetry is initialized.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint enables OTLP/HTTP span export. "default" defers to the
	// OTEL_EXPORTER_OTLP_* environment variables.
	OTLPEndpoint   string
	TracerProvider trace.TracerProvider // overrides the SDK provider, for tests
	MeterProvider  metric.MeterProvider
	Filter         FilterConfig
}

// Manager coordinates tracing, metrics and sensitive-data filtering.
type Manager struct {
	tracer         trace.Tracer
	metrics        *metrics
	filter         *Filter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewManager builds a telemetry manager.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}

	tp := cfg.TracerProvider
	if tp == nil {
		opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(buildResource(cfg))}
		if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
			var exporterOpts []otlptracehttp.Option
			if endpoint != "default" {
				exporterOpts = append(exporterOpts, otlptracehttp.WithEndpointURL(endpoint))
			}
			exporter, err := otlptracehttp.New(ctx, exporterOpts...)
			if err != nil {
				return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
			}
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
		tp = sdktrace.NewTracerProvider(opts...)
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = sdkmetric.NewMeterProvider()
	}
	recorder, err := newMetrics(mp.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	return &Manager{
		tracer:         tp.Tracer(instrumentationName),
		metrics:        recorder,
		filter:         filter,
		tracerProvider: tp,
		meterProvider:  mp,
	}, nil
}

// StartSpan starts a span with sanitized attributes.
func (m *Manager) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m == nil || m.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(m.filter.MaskAttributes(attrs...)...))
}

// RecordRequest publishes per-request metrics.
func (m *Manager) RecordRequest(ctx context.Context, data RequestData) {
	if m == nil {
		return
	}
	data.Input = m.filter.MaskText(data.Input)
	m.metrics.recordRequest(ctx, data)
}

// RecordUpstream counts one provider call.
func (m *Manager) RecordUpstream(ctx context.Context, data UpstreamData) {
	if m == nil {
		return
	}
	m.metrics.recordUpstream(ctx, data)
}

// MaskText removes sensitive content from value.
func (m *Manager) MaskText(value string) string {
	if m == nil {
		return value
	}
	return m.filter.MaskText(value)
}

// Shutdown flushes and stops the providers created or passed in.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	type shutdowner interface {
		Shutdown(context.Context) error
	}
	var result error
	if closer, ok := m.tracerProvider.(shutdowner); ok {
		result = errors.Join(result, closer.Shutdown(ctx))
	}
	if closer, ok := m.meterProvider.(shutdowner); ok {
		result = errors.Join(result, closer.Shutdown(ctx))
	}
	return result
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "ok")
	}
	span.End()
}

func buildResource(cfg Config) *resource.Resource {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "petchat"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", service)}
	if version := strings.TrimSpace(cfg.ServiceVersion); version != "" {
		attrs = append(attrs, attribute.String("service.version", version))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return resource.NewSchemaless(attrs...)
	}
	return res
}
