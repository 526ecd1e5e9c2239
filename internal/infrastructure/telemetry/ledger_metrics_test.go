package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newCollectingLedgerMetrics(t *testing.T, provider telemetry.LedgerStatsProvider) (*telemetry.LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:         mp.Meter("test"),
		Logger:        zap.NewNop(),
		StatsProvider: provider,
	})
	require.NoError(t, err)
	return lm, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestNewLedgerMetrics(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NotNil(t, lm)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{Logger: zap.NewNop()})
	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
}

func TestLedgerMetrics_RecordEntryCreated(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, nil)
	ctx := context.Background()

	lm.RecordEntryCreated(ctx, "USD", 2)
	lm.RecordEntryCreated(ctx, "USD", 4)
	lm.RecordEntryCreated(ctx, "EUR", 2)

	m, ok := collectMetric(t, reader, "ledger_journal_entries_created_total")
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"USD": 2, "EUR": 1}, sumByAttr(t, m, telemetry.AttrCurrency))
}

func TestLedgerMetrics_RecordEntryPosted(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, nil)
	ctx := context.Background()

	lm.RecordEntryPosted(ctx, "USD", 15*time.Millisecond, nil)
	lm.RecordEntryPosted(ctx, "USD", 5*time.Millisecond, shared.NewConflictError("stale"))
	lm.RecordEntryPosted(ctx, "USD", 5*time.Millisecond, shared.NewValidationError("unbalanced"))

	posted, ok := collectMetric(t, reader, "ledger_journal_entries_posted_total")
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"USD": 1}, sumByAttr(t, posted, telemetry.AttrCurrency))

	latency, ok := collectMetric(t, reader, "ledger_journal_entry_post_duration_seconds")
	require.True(t, ok)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	outcomes := make(map[string]uint64)
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrOutcome)
		outcomes[v.AsString()] += dp.Count
	}
	assert.Equal(t, map[string]uint64{"success": 1, "conflict": 1, "rejected": 1}, outcomes)
}

func TestLedgerMetrics_RecordOutboxDelivery(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, nil)
	ctx := context.Background()

	lm.RecordOutboxDelivery(ctx, "JournalEntryPosted", shared.OutboxStatusSent)
	lm.RecordOutboxDelivery(ctx, "JournalEntryPosted", shared.OutboxStatusFailed)
	lm.RecordOutboxDelivery(ctx, "AccountBalanceUpdated", shared.OutboxStatusSent)

	m, ok := collectMetric(t, reader, "ledger_outbox_deliveries_total")
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"SENT": 2, "FAILED": 1}, sumByAttr(t, m, telemetry.AttrOutboxStatus))
}

func TestLedgerMetrics_RecordHandlerOutcome(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, nil)
	ctx := context.Background()

	lm.RecordHandlerOutcome(ctx, "balance", "processed")
	lm.RecordHandlerOutcome(ctx, "balance", "duplicate")
	lm.RecordHandlerOutcome(ctx, "audit", "processed")

	m, ok := collectMetric(t, reader, "ledger_event_handler_outcomes_total")
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"processed": 2, "duplicate": 1}, sumByAttr(t, m, telemetry.AttrOutcome))
	assert.Equal(t, map[string]int64{"balance": 2, "audit": 1}, sumByAttr(t, m, telemetry.AttrHandler))
}

func TestLedgerMetrics_BalanceCounters(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, nil)
	ctx := context.Background()

	lm.RecordBalanceUpdate(ctx, "ASSET")
	lm.RecordBalanceUpdate(ctx, "REVENUE")
	lm.RecordBalanceRetry(ctx)

	m, ok := collectMetric(t, reader, "ledger_balance_updates_total")
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"ASSET": 1, "REVENUE": 1}, sumByAttr(t, m, telemetry.AttrAccountType))

	_, ok = collectMetric(t, reader, "ledger_balance_update_retries_total")
	assert.True(t, ok)
}

type stubStatsProvider struct {
	count int64
	err   error
}

func (s *stubStatsProvider) CountUnposted(ctx context.Context) (int64, error) {
	return s.count, s.err
}

func TestLedgerMetrics_PeriodicCollection(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, &stubStatsProvider{count: 7})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm.StartPeriodicCollection(ctx, time.Hour)
	defer lm.Stop()

	assert.Eventually(t, func() bool {
		m, ok := collectMetric(t, reader, "ledger_journal_entries_unposted")
		if !ok {
			return false
		}
		gauge, ok := m.Data.(metricdata.Gauge[int64])
		return ok && len(gauge.DataPoints) == 1 && gauge.DataPoints[0].Value == 7
	}, time.Second, 10*time.Millisecond)
}

func TestLedgerMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	lm, reader := newCollectingLedgerMetrics(t, &stubStatsProvider{err: errors.New("db down")})
	ctx := context.Background()

	lm.StartPeriodicCollection(ctx, time.Hour)
	lm.Stop()
	lm.Stop()

	time.Sleep(20 * time.Millisecond)
	_, ok := collectMetric(t, reader, "ledger_journal_entries_unposted")
	assert.False(t, ok)
}
