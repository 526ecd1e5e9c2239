package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RetryConfig bounds how long a balance update is retried after version conflicts
type RetryConfig struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns 50ms initial backoff, giving up after 10s
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 50 * time.Millisecond,
		MaxElapsedTime:  10 * time.Second,
	}
}

// JournalEntryPostedHandler applies a posted entry's line items to account balances.
// Each line item is applied at most once: the account balance, the posting record and
// the line's AccountBalanceUpdated event are written in one transaction, and
// already-applied lines are skipped on redelivery. Lines whose account is missing get
// their AccountBalanceUpdated through the publisher once every line has been handled.
type JournalEntryPostedHandler struct {
	entryRepo     ledger.JournalEntryRepository
	accountRepo   ledger.AccountRepository
	publisher     shared.EventPublisher
	logger        *zap.Logger
	ledgerMetrics *telemetry.LedgerMetrics
	retry         RetryConfig
	now           func() time.Time
}

// NewJournalEntryPostedHandler creates a new JournalEntryPostedHandler
func NewJournalEntryPostedHandler(
	entryRepo ledger.JournalEntryRepository,
	accountRepo ledger.AccountRepository,
	logger *zap.Logger,
) *JournalEntryPostedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalEntryPostedHandler{
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
		logger:      logger,
		retry:       DefaultRetryConfig(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetRetryConfig overrides the conflict retry bounds. Zero fields keep their defaults.
func (h *JournalEntryPostedHandler) SetRetryConfig(cfg RetryConfig) {
	if cfg.InitialInterval > 0 {
		h.retry.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxElapsedTime > 0 {
		h.retry.MaxElapsedTime = cfg.MaxElapsedTime
	}
}

// SetEventPublisher sets where AccountBalanceUpdated events for skipped lines go
func (h *JournalEntryPostedHandler) SetEventPublisher(p shared.EventPublisher) {
	h.publisher = p
}

// SetLedgerMetrics sets the ledger metrics collector
func (h *JournalEntryPostedHandler) SetLedgerMetrics(lm *telemetry.LedgerMetrics) {
	h.ledgerMetrics = lm
}

// EventTypes returns the event types this handler is interested in
func (h *JournalEntryPostedHandler) EventTypes() []string {
	return []string{ledger.EventTypeJournalEntryPosted}
}

// Handle processes the JournalEntryPosted event
func (h *JournalEntryPostedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	postedEvent, ok := event.(*ledger.JournalEntryPostedEvent)
	if !ok {
		h.logger.Error("Unexpected event type",
			zap.String("expected", ledger.EventTypeJournalEntryPosted),
			zap.String("actual", event.EventType()),
		)
		return nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "balance_propagation", "handle_posted",
		telemetry.WithAttribute(telemetry.SpanAttrJournalEntryID, postedEvent.JournalEntryID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrJournalEntryNumber, postedEvent.JournalEntryNumber),
	)
	defer span.End()

	h.logger.Info("Handling JournalEntryPosted event",
		zap.String("event_id", postedEvent.EventID().String()),
		zap.String("journal_entry_id", postedEvent.JournalEntryID.String()),
		zap.String("journal_entry_number", postedEvent.JournalEntryNumber),
	)

	entry, err := h.entryRepo.FindByID(ctx, postedEvent.JournalEntryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load journal entry %s: %w", postedEvent.JournalEntryID, err)
	}
	if entry == nil {
		h.logger.Warn("Posted journal entry not found, skipping balance update",
			zap.String("journal_entry_id", postedEvent.JournalEntryID.String()),
		)
		return nil
	}
	if !entry.IsPosted {
		h.logger.Warn("Journal entry is not posted, skipping balance update",
			zap.String("journal_entry_id", entry.ID.String()),
		)
		return nil
	}

	postedAt := postedEvent.PostedAt
	if entry.PostedAt != nil {
		postedAt = *entry.PostedAt
	}

	applied := 0
	var skipped []shared.DomainEvent
	for i := range entry.LineItems {
		item := &entry.LineItems[i]
		outcome, err := h.applyLineItem(ctx, entry, item, postedAt)
		if err != nil {
			telemetry.RecordError(span, err)
			h.logger.Error("Failed to apply line item to account balance",
				zap.String("journal_entry_id", entry.ID.String()),
				zap.String("line_item_id", item.ID.String()),
				zap.String("account_id", item.AccountID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("failed to apply line item %s: %w", item.ID, err)
		}
		switch outcome {
		case lineApplied:
			applied++
		case lineAccountMissing:
			skipped = append(skipped, ledger.NewSkippedBalanceUpdatedEvent(entry, item, postedAt))
		}
	}

	if err := h.publishSkipped(ctx, skipped); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to publish balance events for %s: %w", entry.JournalEntryNumber, err)
	}

	telemetry.SetOK(span)
	h.logger.Info("Account balances updated for posted journal entry",
		zap.String("journal_entry_id", entry.ID.String()),
		zap.Int("line_items", entry.LineItemCount()),
		zap.Int("applied", applied),
		zap.Int("skipped", len(skipped)),
	)
	return nil
}

func (h *JournalEntryPostedHandler) publishSkipped(ctx context.Context, events []shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	if h.publisher == nil {
		h.logger.Warn("No event publisher, dropping balance events for skipped lines",
			zap.Int("events", len(events)))
		return nil
	}
	return h.publisher.Publish(ctx, events...)
}

type lineOutcome int

const (
	lineAlreadyApplied lineOutcome = iota
	lineApplied
	lineAccountMissing
)

// applyLineItem reloads the account, applies the signed amount and persists it with its
// posting record. Version conflicts are retried with exponential backoff from a fresh read.
func (h *JournalEntryPostedHandler) applyLineItem(
	ctx context.Context,
	entry *ledger.JournalEntry,
	item *ledger.JournalEntryLineItem,
	postedAt time.Time,
) (lineOutcome, error) {
	outcome := lineAlreadyApplied

	operation := func() error {
		outcome = lineAlreadyApplied
		alreadyApplied, err := h.accountRepo.IsPostingApplied(ctx, item.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if alreadyApplied {
			h.logger.Debug("Line item already applied, skipping",
				zap.String("line_item_id", item.ID.String()),
			)
			return nil
		}

		account, err := h.accountRepo.FindByID(ctx, item.AccountID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if account == nil {
			h.logger.Warn("Account for line item not found, skipping",
				zap.String("line_item_id", item.ID.String()),
				zap.String("account_id", item.AccountID.String()),
			)
			outcome = lineAccountMissing
			return nil
		}

		if err := account.ApplyBalanceChange(item.SignedAmount()); err != nil {
			return backoff.Permanent(err)
		}
		account.AddDomainEvent(ledger.NewAccountBalanceUpdatedEvent(account, entry, item, postedAt))

		if err := h.accountRepo.SaveBalanceUpdate(ctx, account, ledger.NewAccountPosting(entry, item, h.now())); err != nil {
			if shared.IsConflictError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		outcome = lineApplied
		if h.ledgerMetrics != nil {
			h.ledgerMetrics.RecordBalanceUpdate(ctx, account.AccountType.String())
		}
		h.logger.Debug("Account balance updated",
			zap.String("account_id", account.ID.String()),
			zap.String("account_number", account.AccountNumber),
			zap.String("change", item.SignedAmount().String()),
			zap.String("new_balance", account.CurrentBalance.String()),
		)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		if h.ledgerMetrics != nil {
			h.ledgerMetrics.RecordBalanceRetry(ctx)
		}
		h.logger.Warn("Concurrency conflict on account balance, retrying",
			zap.String("line_item_id", item.ID.String()),
			zap.String("account_id", item.AccountID.String()),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(h.newBackOff(), ctx), notify)
	return outcome, err
}

func (h *JournalEntryPostedHandler) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.retry.InitialInterval
	b.MaxElapsedTime = h.retry.MaxElapsedTime
	b.Reset()
	return b
}

// Ensure JournalEntryPostedHandler implements shared.EventHandler
var _ shared.EventHandler = (*JournalEntryPostedHandler)(nil)
