package xobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopObserver(t *testing.T) {
	t.Run("nil ctx归一化", func(t *testing.T) {
		//nolint:staticcheck // 显式验证 nil ctx 兜底
		ctx, span := NoopObserver{}.Begin(nil, Op{})
		assert.NotNil(t, ctx)
		assert.NotNil(t, span)
		span.End(Result{})
	})
}

func TestBegin_Guards(t *testing.T) {
	t.Run("nil observer返回空跨度", func(t *testing.T) {
		ctx, span := Begin(context.Background(), nil, Op{Operation: "get"})
		assert.NotNil(t, ctx)
		assert.Equal(t, NoopSpan{}, span)
	})

	t.Run("不规范实现被兜底", func(t *testing.T) {
		ctx, span := Begin(context.Background(), badObserver{}, Op{})
		assert.NotNil(t, ctx)
		assert.NotNil(t, span)
	})
}

// badObserver 返回 nil ctx 和 nil span，验证包级 Begin 的兜底逻辑。
type badObserver struct{}

func (badObserver) Begin(context.Context, Op) (context.Context, Span) {
	return nil, nil
}

func TestOTelObserver(t *testing.T) {
	newObserver := func(t *testing.T) (Observer, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
		t.Helper()
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		obs, err := NewOTelObserver(
			WithTracerProvider(tp),
			WithMeterProvider(mp),
			WithInstrumentationName("xobs-test"),
		)
		require.NoError(t, err)
		return obs, recorder, reader
	}

	t.Run("成功操作记录跨度与指标", func(t *testing.T) {
		obs, recorder, reader := newObserver(t)

		ctx, span := obs.Begin(context.Background(), Op{
			Component: "xtable",
			Table:     "orders",
			Operation: "get",
			Category:  "read",
		})
		assert.NotNil(t, ctx)
		span.End(Result{Attempts: 1})

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "xtable.get", spans[0].Name())

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		require.NotEmpty(t, rm.ScopeMetrics)

		names := map[string]bool{}
		for _, m := range rm.ScopeMetrics[0].Metrics {
			names[m.Name] = true
		}
		assert.True(t, names[metricOperationTotal])
		assert.True(t, names[metricAttemptTotal])
		assert.True(t, names[metricOperationDuration])
	})

	t.Run("失败操作记录错误状态", func(t *testing.T) {
		obs, recorder, _ := newObserver(t)

		_, span := obs.Begin(context.Background(), Op{
			Component: "xtable",
			Table:     "orders",
			Operation: "insert",
			Category:  "write",
		})
		span.End(Result{Err: errors.New("insert failed"), Attempts: 3})

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.NotEmpty(t, spans[0].Events(), "应记录 error 事件")
	})

	t.Run("空字段回落unknown", func(t *testing.T) {
		obs, recorder, _ := newObserver(t)

		_, span := obs.Begin(context.Background(), Op{})
		span.End(Result{})

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "unknown.unknown", spans[0].Name())
	})
}
