package xobs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/tablekit/xobs"
	unknownValue               = "unknown"

	metricOperationTotal    = "tablekit.operation.total"
	metricOperationDuration = "tablekit.operation.duration"
	metricAttemptTotal      = "tablekit.attempt.total"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
// 默认使用全局 TracerProvider / MeterProvider。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(cfg.instrumentationName)
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	total, err := meter.Int64Counter(
		metricOperationTotal,
		metric.WithDescription("total table operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xobs: create counter failed: %w", err)
	}

	attempts, err := meter.Int64Counter(
		metricAttemptTotal,
		metric.WithDescription("total underlying attempts including retries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xobs: create counter failed: %w", err)
	}

	duration, err := meter.Float64Histogram(
		metricOperationDuration,
		metric.WithDescription("table operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("xobs: create histogram failed: %w", err)
	}

	return &otelObserver{
		tracer:   tracer,
		total:    total,
		attempts: attempts,
		duration: duration,
	}, nil
}

type otelObserver struct {
	tracer   trace.Tracer
	total    metric.Int64Counter
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// Begin 开始一次观测跨度。
func (o *otelObserver) Begin(ctx context.Context, op Op) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	component := op.Component
	if component == "" {
		component = unknownValue
	}
	operation := op.Operation
	if operation == "" {
		operation = unknownValue
	}

	attrs := []attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("tablekit.table", op.Table),
		attribute.String("tablekit.operation", operation),
		attribute.String("tablekit.category", op.Category),
	}

	ctx, span := o.tracer.Start(
		ctx,
		component+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, &otelSpan{
		obs:   o,
		ctx:   ctx,
		span:  span,
		attrs: attrs,
		start: time.Now(),
	}
}

type otelSpan struct {
	obs   *otelObserver
	ctx   context.Context
	span  trace.Span
	attrs []attribute.KeyValue
	start time.Time
}

// End 结束观测并记录结果。
func (s *otelSpan) End(result Result) {
	status := "ok"
	if result.Err != nil {
		status = "error"
		s.span.RecordError(result.Err)
		s.span.SetStatus(codes.Error, result.Err.Error())
	}
	if result.Attempts > 0 {
		s.span.SetAttributes(attribute.Int("tablekit.attempts", result.Attempts))
	}

	metricAttrs := make([]attribute.KeyValue, 0, len(s.attrs)+1)
	metricAttrs = append(metricAttrs, s.attrs...)
	metricAttrs = append(metricAttrs, attribute.String("status", status))
	attrOpt := metric.WithAttributes(metricAttrs...)

	s.obs.total.Add(s.ctx, 1, attrOpt)
	if result.Attempts > 0 {
		s.obs.attempts.Add(s.ctx, int64(result.Attempts), attrOpt)
	}
	s.obs.duration.Record(s.ctx, time.Since(s.start).Seconds(), attrOpt)

	s.span.End()
}
