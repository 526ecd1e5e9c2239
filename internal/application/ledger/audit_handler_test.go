package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := NewAuditLogHandler(zap.New(core))

	assert.ElementsMatch(t, []string{
		ledger.EventTypeJournalEntryCreated,
		ledger.EventTypeJournalEntryLineItemAdded,
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeAccountBalanceUpdated,
	}, handler.EventTypes())

	cash := newTestAccount(t, "1000", ledger.AccountTypeAsset)
	sales := newTestAccount(t, "4000", ledger.AccountTypeRevenue)
	entry := newPostedEntry(t, cash, sales, "12.00")
	require.NoError(t, cash.ApplyBalanceChange(entry.LineItems[0].SignedAmount()))

	ctx := context.Background()
	require.NoError(t, handler.Handle(ctx, ledger.NewJournalEntryCreatedEvent(entry)))
	require.NoError(t, handler.Handle(ctx, ledger.NewAccountBalanceUpdatedEvent(cash, entry, &entry.LineItems[0], time.Now())))
	require.NoError(t, handler.Handle(ctx, ledger.NewSkippedBalanceUpdatedEvent(entry, &entry.LineItems[1], time.Now())))

	entries := logs.All()
	require.Len(t, entries, 3)

	created := entries[0].ContextMap()
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, ledger.EventTypeJournalEntryCreated, created["event_type"])
	assert.Equal(t, "JE-000001", created["journal_entry_number"])
	assert.Equal(t, "alice", created["created_by"])

	updated := entries[1].ContextMap()
	assert.Equal(t, "1000", updated["account_number"])
	assert.Equal(t, cash.CurrentBalance.String(), updated["new_balance"])

	skipped := entries[2].ContextMap()
	assert.Equal(t, "4000", skipped["account_number"])
	assert.Equal(t, true, skipped["account_missing"])
	assert.NotContains(t, skipped, "new_balance")
}
