package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap/zaptest"
)

// keepGlobals restores the otel globals the enabled providers replace
func keepGlobals(t *testing.T) {
	t.Helper()
	tracers, meters, propagator := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tracers)
		otel.SetMeterProvider(meters)
		otel.SetTextMapPropagator(propagator)
	})
}

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "ledger-test"}, log)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("ledger"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "ledger-test"}, log)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("ledger"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestTracerProvider_ExportsWithServiceResource(t *testing.T) {
	keepGlobals(t)
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:        true,
		SamplingRatio:  1,
		ServiceName:    "ledger-test",
		ServiceVersion: "1.2.3",
		Exporter:       exporter,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	require.True(t, tp.IsEnabled())

	_, span := tp.Tracer("ledger").Start(ctx, "journal_entry.post")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "journal_entry.post", spans[0].Name)

	attrs := spans[0].Resource.Set()
	name, _ := attrs.Value(semconv.ServiceNameKey)
	version, _ := attrs.Value(semconv.ServiceVersionKey)
	assert.Equal(t, "ledger-test", name.AsString())
	assert.Equal(t, "1.2.3", version.AsString())
}

func TestTracerProvider_ZeroRatioDropsRootSpans(t *testing.T) {
	keepGlobals(t)
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:     true,
		ServiceName: "ledger-test",
		Exporter:    exporter,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("ledger").Start(ctx, "journal_entry.create")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	assert.Empty(t, exporter.GetSpans())
}

func TestMeterProvider_InstrumentsReachReader(t *testing.T) {
	keepGlobals(t)
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:     true,
		ServiceName: "ledger-test",
		Reader:      reader,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	require.True(t, mp.IsEnabled())

	meter := mp.Meter("ledger")
	posted, err := telemetry.NewCounter(meter, "posted_total", "Entries posted", "{entry}")
	require.NoError(t, err)
	latency, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "post_seconds",
		Unit:       "s",
		Boundaries: telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)
	unposted, err := telemetry.NewGauge(meter, "unposted", "Unposted entries", "{entry}")
	require.NoError(t, err)

	usd := telemetry.AttrCurrency.String("USD")
	posted.Add(ctx, 2, usd)
	posted.Inc(ctx, usd)
	latency.RecordDuration(ctx, 20*time.Millisecond)
	latency.Record(ctx, 0.3)
	unposted.Record(ctx, 7)
	unposted.Record(ctx, 4)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	name, _ := rm.Resource.Set().Value(semconv.ServiceNameKey)
	assert.Equal(t, "ledger-test", name.AsString())

	require.Len(t, rm.ScopeMetrics, 1)
	byName := map[string]metricdata.Aggregation{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m.Data
	}

	sum := byName["posted_total"].(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	assert.Equal(t, attribute.NewSet(usd), sum.DataPoints[0].Attributes)

	hist := byName["post_seconds"].(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, telemetry.DBDurationBuckets, hist.DataPoints[0].Bounds)

	gauge := byName["unposted"].(metricdata.Gauge[int64])
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(4), gauge.DataPoints[0].Value)
}
