package persistence

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupLedgerDB opens a single-connection in-memory SQLite database with every ledger table
func setupLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))
	return db
}

func newTestSerializer() *event.EventSerializer {
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	return serializer
}

func usd(amount string) valueobject.Money {
	return valueobject.MustNewMoney(amount, valueobject.USD)
}

func newTestAccount(t *testing.T, number string, accountType ledger.AccountType, parentID *uuid.UUID, control bool) *ledger.Account {
	t.Helper()
	account, err := ledger.NewAccount(number, "Account "+number, "", accountType, "USD", parentID, control)
	require.NoError(t, err)
	return account
}

func newTestEntry(t *testing.T, number string, postingDate time.Time, debit, credit *ledger.Account, amount string) *ledger.JournalEntry {
	t.Helper()
	je, err := ledger.NewJournalEntry(number, postingDate, postingDate, "REF-"+number, "Test entry "+number, "USD", "alice")
	require.NoError(t, err)
	_, err = je.AddLineItem(debit.ID, debit.AccountNumber, ledger.Debit, usd(amount), "debit")
	require.NoError(t, err)
	_, err = je.AddLineItem(credit.ID, credit.AccountNumber, ledger.Credit, usd(amount), "credit")
	require.NoError(t, err)
	return je
}

func countOutbox(t *testing.T, db *gorm.DB, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
