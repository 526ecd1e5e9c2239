package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records the business metrics of the ledger: entries created
// and posted, balance propagation, outbox delivery and handler deduplication.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	entriesCreatedTotal  *Counter
	entriesPostedTotal   *Counter
	balanceUpdatesTotal  *Counter
	balanceRetriesTotal  *Counter
	outboxDeliveredTotal *Counter
	handlerOutcomesTotal *Counter

	postingDuration *Histogram
	unpostedEntries *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	statsProvider LedgerStatsProvider
}

// LedgerStatsProvider feeds the periodic gauges without the telemetry layer
// depending on persistence.
type LedgerStatsProvider interface {
	CountUnposted(ctx context.Context) (int64, error)
}

type LedgerMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	StatsProvider LedgerStatsProvider
}

func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:         cfg.Meter,
		logger:        cfg.Logger,
		stopChan:      make(chan struct{}),
		statsProvider: cfg.StatsProvider,
	}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&lm.entriesCreatedTotal, "ledger_journal_entries_created_total",
			"Journal entries created", "{entries}"},
		{&lm.entriesPostedTotal, "ledger_journal_entries_posted_total",
			"Journal entries posted", "{entries}"},
		{&lm.balanceUpdatesTotal, "ledger_balance_updates_total",
			"Account balance updates applied from posted entries", "{updates}"},
		{&lm.balanceRetriesTotal, "ledger_balance_update_retries_total",
			"Balance updates retried after a version conflict", "{retries}"},
		{&lm.outboxDeliveredTotal, "ledger_outbox_deliveries_total",
			"Outbox delivery attempts by resulting status", "{deliveries}"},
		{&lm.handlerOutcomesTotal, "ledger_event_handler_outcomes_total",
			"Event deliveries seen by idempotent handlers by outcome", "{deliveries}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(cfg.Meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	if lm.postingDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_journal_entry_post_duration_seconds",
		Description: "Time taken to post a journal entry",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if lm.unpostedEntries, err = NewGauge(cfg.Meter, "ledger_journal_entries_unposted",
		"Journal entries awaiting posting", "{entries}"); err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Journal Entry Metrics
// =============================================================================

// RecordEntryCreated records the creation of a journal entry.
func (lm *LedgerMetrics) RecordEntryCreated(ctx context.Context, currency string, lineItems int) {
	lm.entriesCreatedTotal.Inc(ctx,
		AttrCurrency.String(currency),
		AttrLineItemCount.Int(lineItems),
	)
}

// RecordEntryPosted records a posting attempt and how long it took.
func (lm *LedgerMetrics) RecordEntryPosted(ctx context.Context, currency string, d time.Duration, err error) {
	outcome := outcomeOf(err)
	lm.postingDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
	if err == nil {
		lm.entriesPostedTotal.Inc(ctx, AttrCurrency.String(currency))
	}
}

// =============================================================================
// Balance Metrics
// =============================================================================

// RecordBalanceUpdate records one line item applied to an account balance.
func (lm *LedgerMetrics) RecordBalanceUpdate(ctx context.Context, accountType string) {
	lm.balanceUpdatesTotal.Inc(ctx, AttrAccountType.String(accountType))
}

// RecordBalanceRetry records a balance update retried after a version conflict.
func (lm *LedgerMetrics) RecordBalanceRetry(ctx context.Context) {
	lm.balanceRetriesTotal.Inc(ctx)
}

// =============================================================================
// Outbox Metrics
// =============================================================================

// RecordOutboxDelivery records the outcome of delivering one outbox entry.
func (lm *LedgerMetrics) RecordOutboxDelivery(ctx context.Context, eventType string, status shared.OutboxStatus) {
	lm.outboxDeliveredTotal.Inc(ctx,
		AttrEventType.String(eventType),
		AttrOutboxStatus.String(string(status)),
	)
}

// RecordHandlerOutcome counts one delivery to an idempotent handler as
// processed, duplicate or failed.
func (lm *LedgerMetrics) RecordHandlerOutcome(ctx context.Context, handler, outcome string) {
	lm.handlerOutcomesTotal.Inc(ctx, AttrHandler.String(handler), AttrOutcome.String(outcome))
}

// RecordUnpostedEntries records the number of entries awaiting posting.
func (lm *LedgerMetrics) RecordUnpostedEntries(ctx context.Context, count int64) {
	lm.unpostedEntries.Record(ctx, count)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case shared.IsConflictError(err):
		return "conflict"
	case shared.IsValidationError(err):
		return "rejected"
	default:
		return "error"
	}
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collect(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collect(ctx)
		}
	}
}

func (lm *LedgerMetrics) collect(ctx context.Context) {
	if lm.statsProvider == nil {
		lm.logger.Debug("No stats provider configured, skipping ledger gauge collection")
		return
	}

	count, err := lm.statsProvider.CountUnposted(ctx)
	if err != nil {
		lm.logger.Warn("Failed to count unposted journal entries", zap.Error(err))
		return
	}
	lm.RecordUnpostedEntries(ctx, count)
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
