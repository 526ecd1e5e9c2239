package event

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Delivery outcomes reported by IdempotentHandler.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// OutcomeRecorder observes every delivery an idempotent handler sees
type OutcomeRecorder interface {
	RecordHandlerOutcome(ctx context.Context, handler, outcome string)
}

// IdempotencyStats counts deliveries by outcome since the handler was built
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler acknowledges a redelivered event without running the wrapped
// handler again. The key is claimed before the handler runs and released when
// it fails, so the outbox retry gets a fresh attempt. When the store itself is
// unavailable the handler still runs; it must tolerate duplicates on its own.
type IdempotentHandler struct {
	inner     shared.EventHandler
	store     shared.IdempotencyStore
	cfg       shared.IdempotencyConfig
	log       *zap.Logger
	keyPrefix string
	recorder  OutcomeRecorder

	processed, duplicate, failed atomic.Int64
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.cfg = cfg }
}

// WithIdempotencyKeyPrefix namespaces keys, e.g. "balance:", so several
// handlers can each consume the same event once.
func WithIdempotencyKeyPrefix(prefix string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.keyPrefix = prefix }
}

func WithOutcomeRecorder(r OutcomeRecorder) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.recorder = r }
}

func NewIdempotentHandler(
	inner shared.EventHandler,
	store shared.IdempotencyStore,
	log *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		inner: inner,
		store: store,
		cfg:   shared.DefaultIdempotencyConfig(),
		log:   log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string { return h.inner.EventTypes() }

// Name identifies the handler in logs and metrics: its key prefix without the
// trailing colon, or "default".
func (h *IdempotentHandler) Name() string {
	if name := strings.TrimSuffix(h.keyPrefix, ":"); name != "" {
		return name
	}
	return "default"
}

func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.cfg.Enabled {
		return h.run(ctx, event, "", false)
	}

	key := h.keyPrefix + event.EventID().String()
	fresh, err := h.store.MarkProcessed(ctx, key, h.cfg.TTL)
	switch {
	case err != nil:
		h.log.Warn("Idempotency store unavailable, handling without a claim",
			h.eventFields(event, zap.Error(err))...)
		return h.run(ctx, event, key, false)
	case !fresh:
		h.duplicate.Add(1)
		h.record(ctx, OutcomeDuplicate)
		h.log.Debug("Duplicate delivery skipped", h.eventFields(event)...)
		return nil
	}
	return h.run(ctx, event, key, true)
}

func (h *IdempotentHandler) run(ctx context.Context, event shared.DomainEvent, key string, claimed bool) error {
	if err := h.inner.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		h.record(ctx, OutcomeFailed)
		h.log.Error("Event handler failed", h.eventFields(event, zap.Error(err))...)
		if claimed {
			if rerr := h.store.Release(ctx, key); rerr != nil {
				h.log.Warn("Failed to release idempotency key, redelivery is skipped until it expires",
					h.eventFields(event, zap.String("key", key), zap.Error(rerr))...)
			}
		}
		return err
	}

	h.processed.Add(1)
	h.record(ctx, OutcomeProcessed)
	h.log.Debug("Event handled", h.eventFields(event)...)
	return nil
}

func (h *IdempotentHandler) record(ctx context.Context, outcome string) {
	if h.recorder != nil {
		h.recorder.RecordHandlerOutcome(ctx, h.Name(), outcome)
	}
}

func (h *IdempotentHandler) eventFields(event shared.DomainEvent, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("handler", h.Name()),
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	}, extra...)
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
