package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes a structured audit line for every ledger event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeJournalEntryCreated,
		ledger.EventTypeJournalEntryLineItemAdded,
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeAccountBalanceUpdated,
	}
}

// Handle logs the event. It never fails.
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *ledger.JournalEntryCreatedEvent:
		fields = append(fields,
			zap.String("journal_entry_number", e.JournalEntryNumber),
			zap.String("reference", e.Reference),
			zap.String("currency", e.Currency.String()),
			zap.String("created_by", e.CreatedBy),
		)
	case *ledger.JournalEntryLineItemAddedEvent:
		fields = append(fields,
			zap.String("line_item_id", e.LineItemID.String()),
			zap.String("account_number", e.AccountNumber),
			zap.String("indicator", e.DebitCreditIndicator.String()),
			zap.String("amount", e.Amount.String()),
		)
	case *ledger.JournalEntryPostedEvent:
		fields = append(fields,
			zap.String("journal_entry_number", e.JournalEntryNumber),
			zap.String("posted_by", e.PostedBy),
			zap.String("total_debit", e.TotalDebitAmount.String()),
		)
	case *ledger.AccountBalanceUpdatedEvent:
		fields = append(fields,
			zap.String("account_number", e.AccountNumber),
			zap.String("journal_entry_number", e.JournalEntryNumber),
			zap.String("balance_change", e.BalanceChange.String()),
		)
		if e.NewBalance != nil {
			fields = append(fields, zap.String("new_balance", e.NewBalance.String()))
		}
		if e.AccountMissing {
			fields = append(fields, zap.Bool("account_missing", true))
		}
	}

	h.logger.Info("Ledger event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
